package publish

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/eddielth/sdr-weather/config"
	"github.com/eddielth/sdr-weather/logger"
)

// Script runs a user supplied JavaScript publish(reading) function for every
// reading, the hook for custom alerts.
type Script struct {
	mutex      sync.Mutex
	vm         *goja.Runtime
	publish    goja.Callable
	scriptPath string
}

// NewScript compiles the configured script
func NewScript(cfg config.ScriptConfig) (*Script, error) {
	s := &Script{}
	if err := s.Reload(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func loadScriptCode(cfg config.ScriptConfig) (string, error) {
	// 优先使用配置中的脚本代码
	if cfg.ScriptCode != "" {
		return cfg.ScriptCode, nil
	}
	if cfg.ScriptPath != "" {
		scriptBytes, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return "", fmt.Errorf("cannot load script file %s: %w", cfg.ScriptPath, err)
		}
		return string(scriptBytes), nil
	}
	return "", fmt.Errorf("no script code or script path provided")
}

// Reload replaces the running script. A broken script leaves the old one in place.
func (s *Script) Reload(cfg config.ScriptConfig) error {
	code, err := loadScriptCode(cfg)
	if err != nil {
		return err
	}

	vm, publish, err := compile(code)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.vm, s.publish, s.scriptPath = vm, publish, cfg.ScriptPath
	s.mutex.Unlock()

	logger.Info("loaded publish script %s", scriptName(cfg.ScriptPath))
	return nil
}

func scriptName(path string) string {
	if path == "" {
		return "(inline)"
	}
	return path
}

func compile(code string) (*goja.Runtime, goja.Callable, error) {
	vm := goja.New()

	// 注入辅助函数
	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})

	_ = vm.Set("formatDate", func(timestamp int64, format string) string {
		if format == "" {
			format = "2006-01-02 15:04:05"
		}
		return time.Unix(timestamp, 0).Format(format)
	})

	_ = vm.Set("convertTemperature", convertTemperature)

	_ = vm.Set("validateRange", func(value float64, min float64, max float64) bool {
		return value >= min && value <= max
	})

	if _, err := vm.RunString(code); err != nil {
		return nil, nil, fmt.Errorf("run script failed: %w", err)
	}

	publishValue := vm.Get("publish")
	if publishValue == nil {
		return nil, nil, fmt.Errorf("script does not define a 'publish' function")
	}

	publish, ok := goja.AssertFunction(publishValue)
	if !ok {
		return nil, nil, fmt.Errorf("'publish' is not a function")
	}
	return vm, publish, nil
}

func convertTemperature(value float64, fromUnit string, toUnit string) float64 {
	fromUnit = strings.ToUpper(fromUnit)
	toUnit = strings.ToUpper(toUnit)

	var celsius float64
	switch fromUnit {
	case "C":
		celsius = value
	case "F":
		celsius = (value - 32) * 5 / 9
	case "K":
		celsius = value - 273.15
	default:
		return value
	}

	switch toUnit {
	case "F":
		return celsius*9/5 + 32
	case "K":
		return celsius + 273.15
	default:
		return celsius
	}
}

// Dispatch calls publish(reading). The reading object has time, sensor,
// temperature, unit, humidity and fields.
func (s *Script) Dispatch(_ context.Context, r Reading) error {
	obj := scriptValue(r)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.publish(goja.Undefined(), s.vm.ToValue(obj)); err != nil {
		return fmt.Errorf("script %s: %w", scriptName(s.scriptPath), err)
	}
	return nil
}

// scriptValue is the plain object handed to the script. temperature and unit
// are only set for numeric temperatures, humidity only when present.
func scriptValue(r Reading) map[string]interface{} {
	obj := map[string]interface{}{
		"time":   r.Time,
		"sensor": r.SensorKey,
		"fields": r.Fields.Map(),
	}
	if r.Temperature.Numeric {
		obj["temperature"] = r.Temperature.Value
		obj["unit"] = string(r.Temperature.Unit)
	}
	if r.Humidity != "" {
		obj["humidity"] = r.Humidity
	}
	return obj
}
