package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/report"
)

type sent struct {
	to, subject, html, plain string
}

type fakeSender struct{ mails []sent }

func (f *fakeSender) Send(to, subject, htmlBody, plainBody string) error {
	f.mails = append(f.mails, sent{to, subject, htmlBody, plainBody})
	return nil
}

func TestSendReport(t *testing.T) {
	s := &fakeSender{}
	n := New(s, "me@example.com")
	require.NoError(t, n.SendReport(&report.Report{Subject: "subj", HTMLBody: "<p>x</p>", PlainBody: "x"}))
	require.Len(t, s.mails, 1)
	assert.Equal(t, sent{"me@example.com", "subj", "<p>x</p>", "x"}, s.mails[0])
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default().Email

	n, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, n, "disabled email builds no notifier")

	cfg.Enabled = true
	_, err = NewFromConfig(cfg)
	assert.Error(t, err, "a recipient is required")

	cfg.ToAddr = "me@example.com"
	n, err = NewFromConfig(cfg)
	require.NoError(t, err)
	assert.NotNil(t, n)

	cfg.Provider = "pigeon"
	_, err = NewFromConfig(cfg)
	assert.Error(t, err)
}
