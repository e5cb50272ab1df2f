package textgen

import (
	"fmt"
	"strings"
)

const (
	maxBodyExcerpt    = 500
	maxCommentExcerpt = 200
)

const persona = "너는 30대 여성 네이버 블로거야.\n"

const sharedRules = "- 25자 내외 (20~30자)\n" +
	"- 30대 여자 말투 (부드럽고 친근한 존댓말, 예: ~요, ~네요, ~좋아요)\n" +
	"- 'ㅎㅎㅎ' 또는 내용에 어울리는 표정, 제스처 이모티콘 쓰기 (예:😆,😌,🥹,😠,👍🏻)\n"

// CommentPrompt builds the prompt for a comment on a post.
func CommentPrompt(title, body string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("아래 블로그 글을 읽고, 글 내용에 맞는 자연스러운 댓글을 작성해.\n")
	b.WriteString("규칙:\n")
	b.WriteString(sharedRules)
	b.WriteString("- 광고성/스팸 금지\n")
	b.WriteString("- 댓글 내용만 출력 (따옴표, 설명 없이)\n\n")
	fmt.Fprintf(&b, "제목: %s\n", title)
	fmt.Fprintf(&b, "본문: %s\n\n", excerpt(body, maxBodyExcerpt))
	b.WriteString("댓글:")
	return b.String()
}

// ReplyPrompt builds the prompt for a reply to a visitor's comment.
func ReplyPrompt(title, body, comment string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("아래는 내 블로그 글과, 다른 사람이 남긴 댓글이야.\n")
	b.WriteString("댓글에 대한 자연스러운 답글(대댓글)을 작성해.\n")
	b.WriteString("규칙:\n")
	b.WriteString(sharedRules)
	b.WriteString("- 댓글 내용에 공감하거나 감사를 표현해\n")
	b.WriteString("- 광고성/스팸 금지\n")
	b.WriteString("- 답글 내용만 출력 (따옴표, 설명 없이)\n\n")
	fmt.Fprintf(&b, "제목: %s\n", title)
	fmt.Fprintf(&b, "본문: %s\n", excerpt(body, maxBodyExcerpt))
	fmt.Fprintf(&b, "댓글: %s\n\n", excerpt(comment, maxCommentExcerpt))
	b.WriteString("답글:")
	return b.String()
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Clean trims whitespace and quotes from generated text and truncates it
// to maxChars characters.
func Clean(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'“”‘’")
	text = strings.TrimSpace(text)
	if maxChars > 0 {
		text = excerpt(text, maxChars)
	}
	return text
}
