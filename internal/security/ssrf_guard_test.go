package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Configuration(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected safeurl transport, got default")
	}
}

// TestNewSafeClientBlocksLoopback はhttptestサーバー（127.0.0.1）への接続が拒否されることを検証する。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestIsBlocked(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewSSRFGuard().NewSafeClient(5 * time.Second).Get(ts.URL)
	if !IsBlocked(err) {
		t.Errorf("IsBlocked(%v) = false, want true for loopback connection", err)
	}
	if IsBlocked(errors.New("connection refused")) {
		t.Error("IsBlocked() = true for an unrelated error")
	}
	if IsBlocked(nil) {
		t.Error("IsBlocked(nil) = true")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https公開URL", "https://example.com", false},
		{"パス付き公開URL", "https://news.example.com/latest", false},
		{"http公開URL", "http://blog.example.org/posts", false},
		{"空文字列", "", true},
		{"スキームなし", "not-a-url", true},
		{"ftpスキーム", "ftp://example.com/news", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"プライベートIP 10/8", "http://10.0.0.1/", true},
		{"プライベートIP 172.16/12", "http://172.31.255.255/", true},
		{"プライベートIP 192.168/16", "http://192.168.1.100/", true},
		{"ループバック", "http://127.0.0.2/", true},
		{"localhost", "http://LOCALHOST/", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/", true},
		{"IPv6ループバック", "http://[::1]/", true},
		{"IPv6ユニークローカル", "http://[fd00::1]/", true},
		{"ゼロアドレス", "http://0.0.0.0/", true},
		{"既定ポート明示", "https://example.com:443/news", false},
		{"http既定ポート明示", "http://example.com:80/", false},
		{"非標準ポート", "https://example.com:8443/", true},
		{"開発用ポート", "http://example.com:8080/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
