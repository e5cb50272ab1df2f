package actions

import (
	"encoding/json"
	"fmt"

	"github.com/kolangzi/naver-automation/internal/scraper"
)

const (
	submitNearest  = "nearest"
	submitFallback = "fallback"
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// openReplyFn clicks the reply control of the comment row whose data-info
// carries commentNo.
func openReplyFn(commentNo string) string {
	return fmt.Sprintf(`(doc) => {
  const no = %s;
  const row = Array.from(doc.querySelectorAll(%s)).find(li => {
    const info = li.getAttribute('data-info') || '';
    return info.indexOf("commentNo:'" + no + "'") >= 0;
  });
  if (!row) { return false; }
  const btn = row.querySelector(%s);
  if (!btn) { return false; }
  btn.click();
  return true;
}`, jsString(commentNo), jsString(scraper.CommentRows), jsString(scraper.CommentReplyButton))
}

// submitNearestFn clicks the upload control closest to the editor by
// walking up its ancestors, falling back to the last one in the document.
func submitNearestFn(editorSel string) string {
	return fmt.Sprintf(`(doc) => {
  const upload = %s;
  const editor = doc.querySelector(%s);
  for (let n = editor; n && n !== doc.body; n = n.parentElement) {
    const btn = n.querySelector(upload);
    if (btn) { btn.click(); return %s; }
  }
  const all = doc.querySelectorAll(upload);
  if (all.length === 0) { return ''; }
  all[all.length - 1].click();
  return %s;
}`, jsString(scraper.CommentUpload), jsString(editorSel), jsString(submitNearest), jsString(submitFallback))
}
