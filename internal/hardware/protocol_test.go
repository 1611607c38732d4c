package hardware

import (
	"bytes"
	"testing"
)

// TestBuildCommand 占位字节从命令码/参数之后交替填充
func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name   string
		op     byte
		params []byte
		want   [CommandLen]byte
	}{
		{
			name: "无参数命令",
			op:   CmdProtocolVersion,
			want: [CommandLen]byte{0xE9, 0xAA, 0x55, 0xAA, 0x55, 0xAA},
		},
		{
			name:   "单参数命令",
			op:     CmdGetDenomValue,
			params: []byte{0x41},
			want:   [CommandLen]byte{0xFB, 0x41, 0xAA, 0x55, 0xAA, 0x55},
		},
		{
			name:   "双参数命令",
			op:     CmdGetCurrencyChar,
			params: []byte{0x01, 0x02},
			want:   [CommandLen]byte{0xFC, 0x01, 0x02, 0xAA, 0x55, 0xAA},
		},
		{
			name:   "满参数命令",
			op:     CmdSetCoinRollData,
			params: []byte{0x01, 0x28, 0x00, 0x4E, 0x20},
			want:   [CommandLen]byte{0xCB, 0x01, 0x28, 0x00, 0x4E, 0x20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildCommand(tt.op, tt.params...)
			if got != tt.want {
				t.Errorf("BuildCommand() = % X, want % X", got[:], tt.want[:])
			}
		})
	}
}

// TestFrameCommand 帧长8字节，CRC覆盖前6字节，高字节在前
func TestFrameCommand(t *testing.T) {
	cmd := BuildCommand(CmdProtocolVersion)
	frame := FrameCommand(cmd)

	if len(frame) != FrameLen {
		t.Fatalf("frame length = %d, want %d", len(frame), FrameLen)
	}
	if !bytes.Equal(frame[:CommandLen], cmd[:]) {
		t.Errorf("frame prefix = % X, want % X", frame[:CommandLen], cmd[:])
	}

	crc := ChecksumCRC16(cmd[:])
	if frame[6] != byte(crc>>8) || frame[7] != byte(crc) {
		t.Errorf("frame CRC = %02X %02X, want %02X %02X",
			frame[6], frame[7], byte(crc>>8), byte(crc))
	}
}

// TestUnwrapResponse 剥离report id；不足7字节按传输失败处理
func TestUnwrapResponse(t *testing.T) {
	t.Run("完整报告", func(t *testing.T) {
		raw := []byte{0x00, 0xE9, '0', '0', '0', '2', 0x00}
		resp, err := UnwrapResponse(raw)
		if err != nil {
			t.Fatalf("UnwrapResponse() error = %v", err)
		}
		if !bytes.Equal(resp[:], raw[1:7]) {
			t.Errorf("payload = % X, want % X", resp[:], raw[1:7])
		}
	})

	t.Run("超长报告只取前7字节", func(t *testing.T) {
		raw := []byte{0x00, 1, 2, 3, 4, 5, 6, 0xFF, 0xFF}
		resp, err := UnwrapResponse(raw)
		if err != nil {
			t.Fatalf("UnwrapResponse() error = %v", err)
		}
		want := []byte{1, 2, 3, 4, 5, 6}
		if !bytes.Equal(resp[:], want) {
			t.Errorf("payload = % X, want % X", resp[:], want)
		}
	})

	t.Run("短读取报错", func(t *testing.T) {
		for n := 0; n < MinReportLen; n++ {
			raw := make([]byte, n)
			if _, err := UnwrapResponse(raw); err == nil {
				t.Errorf("UnwrapResponse(%d bytes) expected error", n)
			}
		}
	})
}

// TestPackAddress 槽位占高2位，序号占低6位
func TestPackAddress(t *testing.T) {
	tests := []struct {
		slot  byte
		index byte
		want  byte
	}{
		{0, 1, 0x01},
		{1, 1, 0x41},
		{2, 5, 0x85},
		{3, 0x3F, 0xFF},
		{1, 0x7F, 0x7F}, // 序号溢出位被截断
	}

	for _, tt := range tests {
		if got := packAddress(tt.slot, tt.index); got != tt.want {
			t.Errorf("packAddress(%d, %d) = 0x%02X, want 0x%02X",
				tt.slot, tt.index, got, tt.want)
		}
	}
}
