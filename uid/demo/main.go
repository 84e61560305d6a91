package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ZacharyGroff/kodawari/cfg"
	"github.com/ZacharyGroff/kodawari/log"
	"github.com/ZacharyGroff/kodawari/uid"
	"github.com/ZacharyGroff/kodawari/uid/intgen"
)

type demoOptions struct {
	// Config 配置文件路径，为空时从命令行参数或环境变量读取实例编号
	Config string `cfg:"config"`
	// Count 生成的 ID 数量
	Count int `cfg:"count" def:"5" validate:"gte=0"`
}

// 用法：
//
//	MACHINE_INSTANCE_IDENTIFIER=42 go run ./uid/demo --count 3
//	go run ./uid/demo --machine-instance-identifier 42
//	go run ./uid/demo --config kodawari.yaml
func main() {
	ctx := context.Background()
	logger := log.Default()

	options, err := parseOptions()
	if err != nil {
		logger.Error("invalid arguments", "error", err.Error())
		os.Exit(1)
	}

	gen, closeConfig, err := newGenerator(ctx, options.Config)
	if err != nil {
		logger.Error("bootstrap failed", "error", err.Error())
		os.Exit(1)
	}
	defer closeConfig()
	defer gen.Close()

	encoder := json.NewEncoder(os.Stdout)
	for i := 0; i < options.Count; i++ {
		id := gen.Next()
		if err := encoder.Encode(struct {
			ID string `json:"id"`
			intgen.Components
			Time string `json:"time"`
		}{
			ID:         fmt.Sprint(id),
			Components: intgen.Decompose(id),
			Time:       intgen.Time(id).UTC().Format("2006-01-02T15:04:05.000Z"),
		}); err != nil {
			logger.Error("encode failed", "error", err.Error())
			return
		}
	}
}

func parseOptions() (*demoOptions, error) {
	c, err := cfg.NewCmdConfig("")
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var options demoOptions
	if err := c.ConvertTo(&options); err != nil {
		return nil, err
	}
	return &options, nil
}

// newGenerator 返回的 closeConfig 需要在生成器关闭之后调用
func newGenerator(ctx context.Context, configFile string) (*uid.Generator, func(), error) {
	if configFile == "" {
		gen, err := uid.NewGeneratorFromEnv(ctx)
		return gen, func() {}, err
	}

	c, err := cfg.NewConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	gen, err := uid.NewGeneratorFromConfig(ctx, c)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return gen, func() { _ = c.Close() }, nil
}
