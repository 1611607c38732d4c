package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/cashwork/coin-scale/internal/config"
	"github.com/cashwork/coin-scale/internal/hardware"
	"github.com/cashwork/coin-scale/internal/logger"
	"github.com/google/uuid"
	"github.com/karalabe/hid"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp || flag.NArg() == 0 {
		printHelp()
		if *showHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	setupSystem(&cfg.System)

	// 每次运行一个会话ID，便于聚合一次操作的全部日志
	session := uuid.New().String()
	log := logger.With(zap.String("session", session))
	log.Info("scale-cli starting",
		zap.String("version", Version),
		zap.String("transport", cfg.Device.Transport))

	if err := run(cfg, flag.Args()); err != nil {
		log.Error("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// setupSystem 应用系统级配置
func setupSystem(cfg *config.SystemConfig) {
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
}

// buildTransport 按配置选择传输层
func buildTransport(cfg *config.Config) (hardware.DeviceTransport, error) {
	if cfg.Device.MockMode || cfg.Device.Transport == "mock" {
		mock := hardware.NewMockTransport(hardware.ProtocolVersion(cfg.Device.MockVersion))
		seedMockDevice(mock)
		return mock, nil
	}

	switch cfg.Device.Transport {
	case "serial":
		return hardware.NewSerialTransport(
			cfg.Device.Serial.Port,
			cfg.Device.Serial.BaudRate,
			cfg.Device.Serial.Caption,
		), nil
	case "hid", "":
		// 先按配置里的ID枚举，找不到再退回内置的已知设备表
		for _, id := range cfg.Device.USB {
			if infos := hid.Enumerate(id.VendorID, id.ProductID); len(infos) > 0 {
				return hardware.NewHIDTransport(infos[0]), nil
			}
		}
		return hardware.OpenFirstScale()
	default:
		return nil, fmt.Errorf("未知的传输类型: %q", cfg.Device.Transport)
	}
}

// seedMockDevice 给模拟设备预置一套演示数据
func seedMockDevice(mock *hardware.MockTransport) {
	mock.SeedCurrency(1, "USD")
	mock.SeedCurrency(2, "EUR")
	mock.SeedCurrency(3, "GBP")
	mock.SetCurrentSlot(1)
	mock.SeedDenomination(1, 1, 1, 2.5, 120, hardware.CashTypeCoin)
	mock.SeedDenomination(1, 2, 5, 5.0, 48, hardware.CashTypeCoin)
	mock.SeedDenomination(1, 3, 25, 5.67, 30, hardware.CashTypeCoin)
	mock.SeedDenomination(1, 4, 100, 1.0, 15, hardware.CashTypeBanknote)
	mock.SetMeasuredWeight(812.34)
	mock.SetFloatRaw(10000)
}

// openController 建立连接并识别协议版本
func openController(cfg *config.Config) (*hardware.ScaleController, error) {
	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	c := hardware.NewScaleController(transport,
		hardware.WithDefaultTimeout(cfg.Device.DefaultTimeout),
		hardware.WithProbeTimeout(cfg.Device.ProbeTimeout),
	)
	if err := c.Open(0); err != nil {
		return nil, err
	}
	return c, nil
}

func run(cfg *config.Config, args []string) error {
	command := args[0]
	args = args[1:]

	c, err := openController(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	switch command {
	case "info":
		return cmdInfo(c)
	case "accounting":
		return cmdAccounting(c, args)
	case "weight":
		return cmdWeight(c)
	case "set-currency":
		return cmdSetCurrency(c, args)
	case "set-default":
		return cmdSetDefault(c, args)
	case "set-value":
		return cmdSetValue(c, args)
	case "set-weight":
		return cmdSetWeight(c, args)
	case "set-text":
		return cmdSetText(c, args)
	case "remove":
		return cmdRemove(c, args)
	case "flag":
		return cmdFlag(c, args)
	case "profile":
		return cmdProfile(c, args)
	case "user-id":
		return cmdUserID(c, args)
	case "roll-data":
		return cmdRollData(c, args)
	case "factory-reset":
		return c.FactoryReset(0)
	default:
		return fmt.Errorf("未知命令: %q", command)
	}
}

// cmdInfo 打印设备概览
func cmdInfo(c *hardware.ScaleController) error {
	fmt.Printf("协议版本:   第%d代\n", c.Version())

	for slot := byte(1); slot <= hardware.MaxCurrencies; slot++ {
		name, err := c.GetCurrencyName(slot, 0)
		if err != nil {
			return err
		}
		fmt.Printf("货币槽位%d:  %s\n", slot, name)
	}

	current, err := c.ResolveCurrentCurrency(0)
	if err != nil {
		return err
	}
	fmt.Printf("当前货币:   槽位%d\n", current)

	settings, err := c.GetFloatSettings(0)
	if err != nil {
		return err
	}
	fmt.Printf("浮动设置:   %.4f (原始值 %d)\n", settings.Value, settings.Raw)

	profile, err := c.GetProfileName(0)
	if err != nil {
		return err
	}
	fmt.Printf("配置名称:   %q\n", profile)

	userID, err := c.GetUserID(0)
	if err != nil {
		return err
	}
	fmt.Printf("用户编号:   %d\n", userID)

	for _, f := range []struct {
		name string
		get  func(time.Duration) (bool, error)
	}{
		{"自动累加", c.GetAutoAdd},
		{"自动继续", c.GetAutoContinue},
		{"卷币功能", c.GetCoinRollMode},
	} {
		on, err := f.get(0)
		if err != nil {
			return err
		}
		fmt.Printf("%s:   %v\n", f.name, on)
	}
	return nil
}

// cmdAccounting 打印记账报告
func cmdAccounting(c *hardware.ScaleController, args []string) error {
	slot := byte(hardware.CurrentCurrency)
	if len(args) > 0 {
		v, err := parseByte(args[0])
		if err != nil {
			return err
		}
		slot = v
	}

	report, err := c.GetAccounting(slot, 0)
	if err != nil {
		return err
	}

	fmt.Printf("货币: %s (槽位%d)\n", report.CurrencyName, report.CurrencySlot)
	fmt.Printf("%-10s %-10s %-10s %s\n", "面额", "数量", "单重(g)", "类型")
	for _, rec := range report.Records {
		fmt.Printf("%-10d %-10d %-10.4f %s\n",
			rec.Denomination, rec.Quantity, rec.Weight, rec.CashType)
	}
	fmt.Printf("合计: %d (最小货币单位)\n", report.Total())
	return nil
}

// cmdWeight 打印当前称重值
func cmdWeight(c *hardware.ScaleController) error {
	weight, err := c.GetMeasuredWeight(0)
	if err != nil {
		return err
	}
	fmt.Printf("%.4f g\n", weight)
	return nil
}

func cmdSetCurrency(c *hardware.ScaleController, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("用法: set-currency <槽位> <三字母名称>")
	}
	slot, err := parseByte(args[0])
	if err != nil {
		return err
	}
	return c.SetCurrencyName(slot, args[1], 0)
}

func cmdSetDefault(c *hardware.ScaleController, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("用法: set-default <槽位>")
	}
	slot, err := parseByte(args[0])
	if err != nil {
		return err
	}
	return c.SetDefaultCurrency(slot, 0)
}

func cmdSetValue(c *hardware.ScaleController, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("用法: set-value <槽位> <序号> <数值>")
	}
	slot, err := parseByte(args[0])
	if err != nil {
		return err
	}
	index, err := parseByte(args[1])
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("无效的面额数值 %q: %w", args[2], err)
	}
	return c.SetDenominationValue(slot, index, int32(value), 0)
}

func cmdSetWeight(c *hardware.ScaleController, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("用法: set-weight <槽位> <序号> <克数>")
	}
	slot, err := parseByte(args[0])
	if err != nil {
		return err
	}
	index, err := parseByte(args[1])
	if err != nil {
		return err
	}
	weight, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("无效的重量 %q: %w", args[2], err)
	}
	return c.SetDenominationWeight(slot, index, weight, 0)
}

func cmdSetText(c *hardware.ScaleController, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("用法: set-text <槽位> <序号> <文本>")
	}
	slot, err := parseByte(args[0])
	if err != nil {
		return err
	}
	index, err := parseByte(args[1])
	if err != nil {
		return err
	}
	return c.SetDenominationText(slot, index, args[2], 0)
}

func cmdRemove(c *hardware.ScaleController, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("用法: remove <槽位> <序号>")
	}
	slot, err := parseByte(args[0])
	if err != nil {
		return err
	}
	index, err := parseByte(args[1])
	if err != nil {
		return err
	}
	return c.RemoveDenomination(slot, index, 0)
}

func cmdFlag(c *hardware.ScaleController, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("用法: flag <auto-add|auto-continue|roll-mode> <on|off>")
	}
	enabled := args[1] == "on"

	switch args[0] {
	case "auto-add":
		return c.SetAutoAdd(enabled, 0)
	case "auto-continue":
		return c.SetAutoContinue(enabled, 0)
	case "roll-mode":
		return c.SetCoinRollMode(enabled, 0)
	default:
		return fmt.Errorf("未知开关: %q", args[0])
	}
}

func cmdProfile(c *hardware.ScaleController, args []string) error {
	if len(args) == 0 {
		name, err := c.GetProfileName(0)
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil
	}
	return c.SetProfileName(args[0], 0)
}

func cmdUserID(c *hardware.ScaleController, args []string) error {
	if len(args) == 0 {
		id, err := c.GetUserID(0)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("无效的用户编号 %q: %w", args[0], err)
	}
	return c.SetUserID(uint32(id), 0)
}

func cmdRollData(c *hardware.ScaleController, args []string) error {
	if len(args) == 1 {
		index, err := parseByte(args[0])
		if err != nil {
			return err
		}
		data, err := c.GetCoinRollData(index, 0)
		if err != nil {
			return err
		}
		fmt.Printf("卷数: %d  卷纸重量: %.4f g\n", data.Quantity, data.PaperWeight)
		return nil
	}
	if len(args) != 3 {
		return fmt.Errorf("用法: roll-data <序号> [<卷数> <卷纸克数>]")
	}
	index, err := parseByte(args[0])
	if err != nil {
		return err
	}
	qty, err := parseByte(args[1])
	if err != nil {
		return err
	}
	paper, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("无效的卷纸重量 %q: %w", args[2], err)
	}
	return c.SetCoinRollData(index, hardware.CoinRollData{Quantity: qty, PaperWeight: paper}, 0)
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("无效的参数 %q: %w", s, err)
	}
	return byte(v), nil
}

func printVersion() {
	fmt.Printf("scale-cli %s\n", Version)
	fmt.Printf("  构建时间: %s\n", BuildTime)
	fmt.Printf("  Git提交:  %s\n", GitCommit)
	fmt.Printf("  Go版本:   %s\n", runtime.Version())
}

func printHelp() {
	fmt.Println(`scale-cli - 点钞秤维护工具

用法:
  scale-cli [-config 配置文件] <命令> [参数]

命令:
  info                             设备概览（版本、货币、设置）
  accounting [槽位]                记账报告（默认当前货币）
  weight                           当前称重值
  set-currency <槽位> <名称>       写入三字母货币名称
  set-default <槽位>               设置上电默认货币
  set-value <槽位> <序号> <数值>   写入面额数值
  set-weight <槽位> <序号> <克数>  写入面额单件重量
  set-text <槽位> <序号> <文本>    写入面额显示文本
  remove <槽位> <序号>             删除面额
  flag <名称> <on|off>             开关: auto-add / auto-continue / roll-mode
  profile [名称]                   读取或写入配置名称
  user-id [编号]                   读取或写入用户编号
  roll-data <序号> [卷数 克数]     读取或写入卷币数据
  factory-reset                    恢复出厂设置

选项:
  -config string   配置文件路径
  -version         显示版本信息
  -help            显示帮助信息`)
}
