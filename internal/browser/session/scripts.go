package session

// Functions evaluated with the target element bound to `this`.
const (
	jsDisplayed = `function() {
	if (!this.isConnected) return false;
	const s = window.getComputedStyle(this);
	if (s.display === 'none' || s.visibility === 'hidden' || s.visibility === 'collapse') return false;
	if (parseFloat(s.opacity) === 0) return false;
	const r = this.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
}`

	jsEnabled = `function() {
	return !this.disabled && this.getAttribute('aria-disabled') !== 'true';
}`

	jsText = `function() {
	return (this.innerText || '').replace(/\s+/g, ' ').trim();
}`

	jsOuterHTML = `function() { return this.outerHTML; }`

	jsAttr = `function(name) {
	return this.hasAttribute(name)
		? {present: true, value: this.getAttribute(name)}
		: {present: false, value: ''};
}`

	jsScrollCenter = `function() {
	this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
}`

	// jsHitTest scrolls the element into view if needed and reports its
	// center and whether that point hits the element or a descendant.
	jsHitTest = `function() {
	if (this.scrollIntoViewIfNeeded) { this.scrollIntoViewIfNeeded(true); }
	const r = this.getBoundingClientRect();
	if (r.width === 0 || r.height === 0) return {ok: false, reason: 'zero-size', x: 0, y: 0};
	const x = r.left + r.width / 2, y = r.top + r.height / 2;
	const hit = document.elementFromPoint(x, y);
	if (!hit) return {ok: false, reason: 'outside viewport', x: x, y: y};
	if (hit !== this && !this.contains(hit)) {
		const id = hit.id ? '#' + hit.id : '';
		return {ok: false, covered: true, reason: 'covered by ' + hit.tagName.toLowerCase() + id, x: x, y: y};
	}
	return {ok: true, x: x, y: y};
}`

	jsClick = `function() { this.click(); }`

	jsClear = `function() {
	this.focus();
	this.value = '';
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

	// jsMarkParent tags the parent element so it can be fetched by a CSS
	// query. Returns false at the root.
	jsMarkParent = `function(attr, mark) {
	const p = this.parentElement;
	if (!p) return false;
	p.setAttribute(attr, mark);
	return true;
}`

	// jsMarkXPath tags every element matched by an XPath evaluated relative
	// to this node and returns the count.
	jsMarkXPath = `function(attr, mark, expr) {
	const r = document.evaluate(expr, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	let n = 0;
	for (let i = 0; i < r.snapshotLength; i++) {
		const el = r.snapshotItem(i);
		if (el.nodeType === 1) { el.setAttribute(attr, mark); n++; }
	}
	return n;
}`

	jsUnmark = `function(attr) { this.removeAttribute(attr); }`
)

// markAttr tags nodes for lookup by CSS.
const markAttr = "data-cartwatch-mark"

type attrResult struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

type hitResult struct {
	OK      bool    `json:"ok"`
	Covered bool    `json:"covered"`
	Reason  string  `json:"reason"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}
