package tasks

import (
	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/price"
)

// Locator chains for the storefront, most specific first.
var (
	searchBox = locator.NewChain("search box",
		"#twotabsearchtextbox",
		"#nav-search-keywords",
		"input[name='field-keywords']",
		".nav-search-field input",
	)
	searchSubmit = locator.NewChain("search submit",
		"#nav-search-submit-button",
		".nav-search-submit input",
	)
	resultCards = locator.NewChain("search results",
		".s-result-item[data-component-type='s-search-result']",
		"[data-component-type='s-search-result']",
		".s-search-results .s-result-item",
		".s-main-slot .s-result-item",
		".s-result-item",
	)
	cardTitle = locator.NewChain("result title",
		"h2 a span",
		"h2 a",
		"h2",
		".a-link-normal .a-text-normal",
		".a-text-normal",
	)
	cardLink = locator.NewChain("result link",
		"h2 a",
		".a-link-normal[href*='/dp/']",
		".a-link-normal[href*='/gp/product/']",
		"[data-cy='title-recipe'] a",
		".s-line-clamp-2 a",
	)
	cardAddToCart = locator.NewChain("result add to cart",
		"input[type='submit'][value*='Add to Cart']",
		"button[name='submit.addToCart']",
		".a-button-input[type='submit']",
	)
	fallbackProductLinks = locator.NewChain("fallback product link",
		".s-result-item h2 a",
		".s-result-item .a-link-normal[href*='/dp/']",
		"[data-component-type='s-search-result'] h2 a",
		".s-search-results h2 a",
		".a-link-normal[href*='/dp/']",
		"[data-cy='title-recipe'] a",
		".s-line-clamp-2 a",
	)
	productTitle = locator.NewChain("product title",
		"#productTitle",
		"#title",
		".product-title",
		"h1.a-size-large",
		".a-size-large h1",
		"[data-cy='title-recipe'] h1",
		".a-section h1",
		"h1",
	)
	addToCart = locator.NewChain("add to cart",
		"#add-to-cart-button",
		"#submit.add-to-cart",
		"input[type='submit'][value*='Add to Cart']",
		"#add-to-cart-button-ubb",
		"[data-cy='add-to-cart-button']",
		".a-button-input[type='submit']",
	)
	cartLink = locator.NewChain("cart link",
		"#nav-cart",
		"a[href*='/gp/cart/view.html']",
		"#sw-gtc a",
	)
	proceedToCheckout = locator.NewChain("proceed to checkout",
		"#sc-buy-box-ptc-button",
		"input[name='proceedToRetailCheckout']",
		"#submitOrderButtonId",
	)

	accountNav = locator.NewChain("account menu",
		"#nav-link-accountList",
		"[data-nav-role='signin']",
		".nav-line-1-container",
		".nav-line-2",
	)
	accountLabel = locator.NewChain("account label",
		"#nav-link-accountList-nav-line-1",
		"#nav-link-accountList .nav-line-1",
		"[data-nav-role='account']",
		"#nav-link-accountList",
	)
	emailField = locator.NewChain("email field",
		"#ap_email",
		"[name='email']",
		"#email",
		"input[type='email']",
		"input[placeholder*='email']",
	)
	continueButton = locator.NewChain("continue",
		"#continue",
		"input[type='submit'][value*='ontinue']",
	)
	passwordField = locator.NewChain("password field",
		"#ap_password",
		"[name='password']",
		"#password",
		"input[type='password']",
		"input[placeholder*='password']",
	)
	signInSubmit = locator.NewChain("sign in",
		"#signInSubmit",
		"input[type='submit'][value*='ign']",
	)
	challengeMarkers = locator.NewChain("challenge page",
		"[data-captcha]",
		"#captchacharacters",
		"#auth-captcha-image",
		"form[action*='validateCaptcha']",
		"#cvf-page-content",
	)

	brandLinks = locator.NewChain("brand refinement",
		".s-refinement-link[href*='brand']",
		"[data-csa-c-content-id*='brand']",
		".a-link-normal[href*='brand']",
		"a[href*='brand']",
	)
	priceMinInput = locator.NewChain("minimum price",
		"#low-price",
		"input[name='low-price']",
		".a-section input[type='text'][placeholder*='Min']",
		"#priceRefinements input[type='text']",
		".priceRefinements input[type='text']",
		"[data-cy='price-filter'] input",
	)
	priceGo = locator.NewChain("price go",
		"#priceRefinements input[type='submit']",
		"input[type='submit'][value='Go']",
		"[data-cy='price-filter'] input[type='submit']",
		".s-refinement input[type='submit']",
		"span.a-button input[type='submit']",
	)
	ratingLinks = locator.NewChain("rating refinement",
		".s-refinement-link[href*='p_72']",
		"[data-csa-c-content-id*='p_72']",
		".a-link-normal[href*='p_72']",
		".a-section .a-link-normal[href*='customerReviews']",
		".s-refinement-link[href*='customerReviews']",
		".s-refinement-list .a-link-normal",
	)
	activeFilters = locator.NewChain("active filters",
		".s-refinement-link-active",
		"[aria-pressed='true']",
		".a-section.a-spacing-none .a-color-state",
	)
	cardBrand = locator.NewChain("result brand",
		"[data-cy='product-brand']",
		".a-size-base-plus.a-color-base",
		".a-size-base.a-color-base",
		".a-link-normal[href*='brand']",
	)
)

// Price targets for the cart subtotal and for a product page.
var (
	cartTotalTargets = price.Targets{
		Primary: locator.NewChain("cart subtotal",
			"#sc-subtotal-amount-activecart .a-price .a-offscreen",
			"#sc-subtotal-amount-activecart .sc-price",
			"#sc-subtotal-amount-buybox .a-price .a-offscreen",
			"[data-cy='sc-subtotal-amount'] .a-price .a-offscreen",
			".sc-subtotal-amount .a-price .a-offscreen",
			"#sc-subtotal-amount-buybox .a-size-medium.a-color-price",
			".sc-subtotal-amount .a-size-medium.a-color-price",
			"#sc-subtotal-amount-activecart",
			".sc-price",
		),
		Structural: []browser.Locator{
			`//*[contains(@id,'subtotal')]//*[contains(text(),'$') or contains(text(),'₹')]`,
			`//span[contains(text(),'$') or contains(text(),'₹')]`,
			`//span[contains(text(),'$') or contains(text(),'₹')]/following-sibling::span[1]`,
		},
	}
	productPriceTargets = price.Targets{
		Primary: locator.NewChain("product price",
			"#corePrice_feature_div .a-price .a-offscreen",
			".a-price .a-offscreen",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			"[data-cy='price-recipe'] .a-offscreen",
			".a-color-price",
		),
		Structural: []browser.Locator{
			`//span[contains(@class,'a-price')]//span[contains(text(),'$') or contains(text(),'₹')]`,
			`//span[contains(text(),'$') or contains(text(),'₹')]`,
		},
	}
)
