package hardware

import (
	"testing"

	"github.com/cashwork/coin-scale/internal/errors"
)

// TestSegmentRoundTrip 所有字符编码后可解码还原（有损对除外）
func TestSegmentRoundTrip(t *testing.T) {
	chars := "ABCDEFGHIJKLMNPQRTUVWXYZ1234678 ."
	for i := 0; i < len(chars); i++ {
		ch := chars[i]
		low, high, err := EncodeSegment(ch)
		if err != nil {
			t.Fatalf("EncodeSegment(%q) error = %v", ch, err)
		}
		if got := DecodeSegment(low, high, Version2); got != ch {
			t.Errorf("DecodeSegment(EncodeSegment(%q)) = %q", ch, got)
		}
	}
}

// TestSegmentLossyPairs 字库有损：'0'与'O'、'5'与'S'共用段码，解码还原为字母
func TestSegmentLossyPairs(t *testing.T) {
	tests := []struct {
		digit  byte
		letter byte
	}{
		{'0', 'O'},
		{'5', 'S'},
	}

	for _, tt := range tests {
		dl, dh, err := EncodeSegment(tt.digit)
		if err != nil {
			t.Fatalf("EncodeSegment(%q) error = %v", tt.digit, err)
		}
		ll, lh, err := EncodeSegment(tt.letter)
		if err != nil {
			t.Fatalf("EncodeSegment(%q) error = %v", tt.letter, err)
		}
		if dl != ll || dh != lh {
			t.Errorf("%q and %q should share a segment word", tt.digit, tt.letter)
		}
		if got := DecodeSegment(dl, dh, Version2); got != tt.letter {
			t.Errorf("DecodeSegment(%q code) = %q, want %q", tt.digit, got, tt.letter)
		}
	}
}

// TestSegmentVersion1ByteSwap 第一代协议上行段码字节序相反
func TestSegmentVersion1ByteSwap(t *testing.T) {
	low, high, err := EncodeSegment('A')
	if err != nil {
		t.Fatal(err)
	}

	if got := DecodeSegment(high, low, Version1); got != 'A' {
		t.Errorf("DecodeSegment(swapped, Version1) = %q, want 'A'", got)
	}
	if got := DecodeSegment(low, high, Version1); got == 'A' {
		t.Errorf("DecodeSegment(unswapped, Version1) unexpectedly decoded 'A'")
	}
}

// TestSegmentUnknownDecodesToSpace 未知段码按固件行为解码为空格
func TestSegmentUnknownDecodesToSpace(t *testing.T) {
	if got := DecodeSegment(0xFF, 0xFF, Version2); got != ' ' {
		t.Errorf("DecodeSegment(unknown) = %q, want space", got)
	}
}

// TestEncodeSegmentInvalidCharacter 字库外字符报错
func TestEncodeSegmentInvalidCharacter(t *testing.T) {
	for _, ch := range []byte{'a', '-', '$', 0x00} {
		_, _, err := EncodeSegment(ch)
		if err == nil {
			t.Errorf("EncodeSegment(%q) expected error", ch)
			continue
		}
		if !errors.Is(err, errors.ErrInvalidCharacter) {
			t.Errorf("EncodeSegment(%q) error code = %d, want %d",
				ch, errors.GetCode(err), errors.ErrInvalidCharacter)
		}
	}
}

// TestEncodeSegmentString 整串编码，任一非法字符立即失败
func TestEncodeSegmentString(t *testing.T) {
	words, err := encodeSegmentString("USD")
	if err != nil {
		t.Fatalf("encodeSegmentString(\"USD\") error = %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("words = %d, want 3", len(words))
	}

	if _, err := encodeSegmentString("US$"); err == nil {
		t.Error("encodeSegmentString(\"US$\") expected error")
	}
}
