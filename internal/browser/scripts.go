package browser

import (
	"encoding/json"
	"fmt"
)

// Every document operation is a self-contained expression that resolves
// its document, performs one step and returns an opResult.
type opResult struct {
	Frame bool            `json:"frame"`
	Found bool            `json:"found"`
	Value json.RawMessage `json:"value"`
}

// jsArg encodes v as a JavaScript literal.
func jsArg(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

const topDocument = "document"

// frameLocator resolves a same-origin sub-frame document by exact name or
// URL substring, searching nested frames depth first.
func frameLocator(name, urlPart string) string {
	return fmt.Sprintf(`((name, part) => {
  const walk = (w) => {
    for (let i = 0; i < w.frames.length; i++) {
      const f = w.frames[i];
      let n = '', u = '';
      try { n = f.name; u = f.location.href; } catch (e) { continue; }
      if ((name && n === name) || (part && u.indexOf(part) >= 0)) { return f.document; }
      const hit = walk(f);
      if (hit) { return hit; }
    }
    return null;
  };
  return walk(window);
})(%s, %s)`, jsArg(name), jsArg(urlPart))
}

func wrapOp(locator, body string) string {
	return fmt.Sprintf(`(() => {
  const doc = %s;
  if (!doc) { return { frame: false, found: false }; }
  %s
})()`, locator, body)
}

func existsScript(locator, sel string) string {
	return wrapOp(locator, fmt.Sprintf(
		`return { frame: true, found: doc.querySelector(%s) !== null };`, jsArg(sel)))
}

func visibleScript(locator, sel string) string {
	return wrapOp(locator, fmt.Sprintf(`const el = doc.querySelector(%s);
  return { frame: true, found: el !== null, value: el !== null && el.offsetParent !== null };`, jsArg(sel)))
}

func attributeScript(locator, sel, name string) string {
	return wrapOp(locator, fmt.Sprintf(`const el = doc.querySelector(%s);
  if (!el) { return { frame: true, found: false }; }
  return { frame: true, found: true, value: el.getAttribute(%s) };`, jsArg(sel), jsArg(name)))
}

func textScript(locator, sel string) string {
	return wrapOp(locator, fmt.Sprintf(`const el = doc.querySelector(%s);
  if (!el) { return { frame: true, found: false }; }
  return { frame: true, found: true, value: (el.innerText || el.textContent || '').trim() };`, jsArg(sel)))
}

func clickScript(locator, sel string) string {
	return wrapOp(locator, fmt.Sprintf(`const el = doc.querySelector(%s);
  if (!el) { return { frame: true, found: false }; }
  el.click();
  return { frame: true, found: true };`, jsArg(sel)))
}

func clickTextScript(locator, sel, text string) string {
	return wrapOp(locator, fmt.Sprintf(`const want = %s;
  const el = Array.from(doc.querySelectorAll(%s))
    .find(e => (e.innerText || e.textContent || '').indexOf(want) >= 0);
  if (!el) { return { frame: true, found: false }; }
  el.click();
  return { frame: true, found: true };`, jsArg(text), jsArg(sel)))
}

func fillScript(locator, sel, value string) string {
	return wrapOp(locator, fmt.Sprintf(`const el = doc.querySelector(%s);
  if (!el) { return { frame: true, found: false }; }
  el.focus();
  el.value = %s;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return { frame: true, found: true };`, jsArg(sel), jsArg(value)))
}

func richTextScript(locator, sel, text string) string {
	return wrapOp(locator, fmt.Sprintf(`const el = doc.querySelector(%s);
  if (!el) { return { frame: true, found: false }; }
  el.focus();
  el.innerText = %s;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  el.dispatchEvent(new KeyboardEvent('keyup', { bubbles: true }));
  return { frame: true, found: true };`, jsArg(sel), jsArg(text)))
}

func htmlScript(locator string) string {
	return wrapOp(locator,
		`return { frame: true, found: true, value: doc.documentElement ? doc.documentElement.outerHTML : '' };`)
}

func evaluateScript(locator, fn string) string {
	return wrapOp(locator, fmt.Sprintf(`return { frame: true, found: true, value: (%s)(doc) };`, fn))
}

func scrollScript(locator string) string {
	return wrapOp(locator, `const w = doc.defaultView || window;
  w.scrollTo(0, doc.body ? doc.body.scrollHeight : 0);
  return { frame: true, found: true };`)
}
