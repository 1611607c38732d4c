package hardware

import (
	"time"

	"github.com/cashwork/coin-scale/internal/errors"
	"github.com/cashwork/coin-scale/internal/logger"
	"go.uber.org/zap"
)

// ProtocolVersion 协议代际（1-6）。六代固件行为互不兼容：
// 字节序、浮动设置的含义、卷币存储布局都随代际变化。
// 连接打开时识别一次，之后整个连接生命周期内只读。
type ProtocolVersion int

const (
	VersionUnknown ProtocolVersion = 0
	Version1       ProtocolVersion = 1
	Version2       ProtocolVersion = 2
	Version3       ProtocolVersion = 3
	Version4       ProtocolVersion = 4
	Version5       ProtocolVersion = 5
	Version6       ProtocolVersion = 6
)

// 版本握手响应中的产品名，用于区分第2-4代
const (
	captionICount = "iCount"
	captionRS1000 = "RS 1000"
)

// ClassifyVersion 根据握手响应字符串与产品名归类协议代际。
// 归类规则是精确匹配，按表顺序：
//
//	"\x00\x00\x002" → 1（任意产品名）
//	"0002"+iCount   → 2
//	"0002"+RS 1000  → 3
//	"0002"+其他     → 4
//	"0003"          → 5（任意产品名）
//	"0004"          → 6（任意产品名）
func ClassifyVersion(handshake string, caption string) (ProtocolVersion, error) {
	switch handshake {
	case "\x00\x00\x002":
		return Version1, nil
	case "0002":
		switch caption {
		case captionICount:
			return Version2, nil
		case captionRS1000:
			return Version3, nil
		default:
			return Version4, nil
		}
	case "0003":
		return Version5, nil
	case "0004":
		return Version6, nil
	}
	return VersionUnknown, errors.Newf(errors.ErrUnknownVersion, "握手响应 %q", handshake)
}

// detectVersion 发送版本握手命令并读取产品名，识别协议代际。
// 仅在连接打开时调用一次。
func (c *ScaleController) detectVersion(timeout time.Duration) (ProtocolVersion, error) {
	resp, err := c.exchange(BuildCommand(CmdProtocolVersion), timeout)
	if err != nil {
		return VersionUnknown, err
	}

	// 响应偏移1起的4个ASCII字节
	handshake := string(resp[1:5])

	caption, err := c.transport.ProductCaption()
	if err != nil {
		return VersionUnknown, errors.Wrap(err, errors.ErrTransportRead, "读取产品名失败")
	}

	version, err := ClassifyVersion(handshake, caption)
	if err != nil {
		return VersionUnknown, err
	}

	logger.LogDeviceEvent("protocol_version_detected",
		zap.Int("version", int(version)),
		zap.String("caption", caption),
	)
	return version, nil
}
