package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/torp/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDefaults(t *testing.T) {
	Convey("Given no file and no environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.CacheCompanyTTLHours, ShouldEqual, 24)
			So(cfg.CachePriceTTLHours, ShouldEqual, 6)
			So(cfg.CacheGeoTTLHours, ShouldEqual, 168)
			So(cfg.CacheDefaultTTLMin, ShouldEqual, 30)
		})

		Convey("And the default weights sum to 1.0", func() {
			var sum float64
			for _, w := range cfg.Weights {
				sum += w
			}
			So(sum, ShouldAlmostEqual, 1.0, 1e-12)
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		t.Setenv("TORP_ADDR", ":7070")
		t.Setenv("TORP_LOG_LEVEL", "debug")
		t.Setenv("TORP_SOURCE_TIMEOUT_MS", "2500")

		cfg, err := config.Load(context.Background())

		Convey("Then env values win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.SourceTimeoutMS, ShouldEqual, 2500)
		})
	})
}

func TestLoadFile(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "torp.yaml")
		yaml := []byte("addr: \":6060\"\nsources:\n  price_reference: \"https://prices.example/api\"\n")
		So(os.WriteFile(path, yaml, 0o600), ShouldBeNil)
		t.Setenv("TORP_CONFIG", path)

		cfg, err := config.Load(context.Background())

		Convey("Then the file layer applies", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
			So(cfg.Sources["price_reference"], ShouldEqual, "https://prices.example/api")
		})

		Convey("And env still beats the file", func() {
			t.Setenv("TORP_ADDR", ":5050")
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":5050")
		})
	})
}

func TestLoadValidation(t *testing.T) {
	Convey("Given weights that do not sum to 1.0 in the file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "torp.yaml")
		yaml := []byte("weights:\n  price: 0.5\n  quality: 0.5\n  delay: 0.5\n  compliance: 0.5\n")
		So(os.WriteFile(path, yaml, 0o600), ShouldBeNil)
		t.Setenv("TORP_CONFIG", path)

		Convey("Then Load fails with ErrInvalidConfig", func() {
			_, err := config.Load(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})

	Convey("Given a nonexistent config file path", t, func() {
		t.Setenv("TORP_CONFIG", "/nonexistent/torp.yaml")

		Convey("Then Load fails with ErrLoadConfig", func() {
			_, err := config.Load(context.Background())
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		})
	})
}
