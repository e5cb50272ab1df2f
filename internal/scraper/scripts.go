package scraper

import (
	"encoding/json"
	"fmt"
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// clickExactTextFn clicks the first match of sel whose trimmed text equals
// label. Pager links need an exact match: "2" must not hit "12".
func clickExactTextFn(sel, label string) string {
	return fmt.Sprintf(`(doc) => {
  const el = Array.from(doc.querySelectorAll(%s))
    .find(e => (e.textContent || '').trim() === %s);
  if (!el) { return false; }
  el.click();
  return true;
}`, jsString(sel), jsString(label))
}

// clickNextFn clicks a pager "next" control.
func clickNextFn() string {
	return fmt.Sprintf(`(doc) => {
  let el = Array.from(doc.querySelectorAll(%s))
    .find(e => (e.textContent || '').indexOf(%s) >= 0);
  if (!el) { el = doc.querySelector(%s); }
  if (!el) { return false; }
  el.click();
  return true;
}`, jsString(BuddyPaginate), jsString(KeywordNext), jsString(BuddyNextLink))
}
