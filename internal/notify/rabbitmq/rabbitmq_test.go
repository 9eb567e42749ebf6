package rabbitmq

import (
	"strings"
	"testing"
)

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "http://rabbit:5672/", Exchange: "eksupdater"}, nil)
	if err == nil || !strings.Contains(err.Error(), "connect to rabbitmq") {
		t.Fatalf("New(http url) error = %v, want connect error", err)
	}
}
