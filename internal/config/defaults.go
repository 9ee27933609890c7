package config

// Sponsorship vocabularies used when the config file does not override them.
var (
	DefaultLabelSelectors = []string{
		"[aria-label*='Sponsored']",
		"[aria-label*='sponsored']",
		".puis-sponsored-label-text",
		".s-sponsored-label-text",
		".s-sponsored-label-info-icon",
		".s-sponsored-info-icon",
		".s-label-popover-default",
		".puis-label-popover-default",
		"[data-cy='sponsored-label']",
		"[data-cy='ad-label']",
		".s-sponsored-header",
		".puis-sponsored-header",
		".ad-badge",
		".s-ad-badge",
	}

	DefaultKeywords = []string{
		"sponsored",
		"ad",
		"advertisement",
		"ad choice",
		"adchoices",
		"promoted",
		"featured",
		"patronized",
		"presented by",
	}

	DefaultDataAttributes = []string{
		"data-component-type",
		"data-cel-widget",
		"data-ad-details",
		"data-ad-id",
	}

	DefaultClassFragments = []string{
		"s-sponsored",
		"puis-sponsored",
		"ad-container",
		"AdHolder",
	}
)
