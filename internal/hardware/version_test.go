package hardware

import (
	"testing"

	"github.com/cashwork/coin-scale/internal/errors"
)

// TestClassifyVersion 代际归类表
func TestClassifyVersion(t *testing.T) {
	tests := []struct {
		name      string
		handshake string
		caption   string
		want      ProtocolVersion
		wantErr   bool
	}{
		{"第1代", "\x00\x00\x002", "anything", Version1, false},
		{"第1代产品名无关", "\x00\x00\x002", "iCount", Version1, false},
		{"第2代iCount", "0002", "iCount", Version2, false},
		{"第3代RS1000", "0002", "RS 1000", Version3, false},
		{"第4代其他产品名", "0002", "Coin Scale Pro", Version4, false},
		{"第4代空产品名", "0002", "", Version4, false},
		{"第5代", "0003", "iCount", Version5, false},
		{"第6代", "0004", "RS 1000", Version6, false},
		{"未知握手", "9999", "iCount", VersionUnknown, true},
		{"空握手", "", "", VersionUnknown, true},
		{"大小写敏感", "0002", "icount", Version4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyVersion(tt.handshake, tt.caption)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ClassifyVersion(%q, %q) expected error", tt.handshake, tt.caption)
				}
				if !errors.Is(err, errors.ErrUnknownVersion) {
					t.Errorf("error code = %d, want %d", errors.GetCode(err), errors.ErrUnknownVersion)
				}
				return
			}
			if err != nil {
				t.Fatalf("ClassifyVersion(%q, %q) error = %v", tt.handshake, tt.caption, err)
			}
			if got != tt.want {
				t.Errorf("ClassifyVersion(%q, %q) = %d, want %d", tt.handshake, tt.caption, got, tt.want)
			}
		})
	}
}
