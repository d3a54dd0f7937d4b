package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/racecheck/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "racecheck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given no file and no env vars", t, func() {
		cfg, err := config.Load(ctx)

		convey.Convey("Then defaults are returned", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg, convey.ShouldResemble, config.New())
		})
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given env vars", t, func() {
		t.Setenv("RACECHECK_ADDR", ":8080")
		t.Setenv("RACECHECK_QUEUE_SIZE", "64")
		t.Setenv("RACECHECK_WORKER_COUNT", "3")
		t.Setenv("RACECHECK_SUBSECOND_TIEBREAK", "true")
		t.Setenv("RACECHECK_LOG_FORMAT", "json")

		cfg, err := config.Load(ctx)

		convey.Convey("Then they override defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
			convey.So(cfg.SubsecondTieBreak, convey.ShouldBeTrue)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
		})
	})
}

func TestLoad_FileAndEnv(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a YAML file and env vars", t, func() {
		path := writeConfigFile(t, `
addr: ":9090"
queue_size: 300
store: mongo
mongo_database: races
results_extension: ".txt"
`)
		t.Setenv("RACECHECK_CONFIG", path)
		t.Setenv("RACECHECK_QUEUE_SIZE", "500")

		cfg, err := config.Load(ctx)

		convey.Convey("Then env wins over the file and the file over defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMongo)
			convey.So(cfg.MongoDatabase, convey.ShouldEqual, "races")
			convey.So(cfg.MongoCollection, convey.ShouldEqual, "events")
			convey.So(cfg.ResultsExtension, convey.ShouldEqual, ".txt")
		})
	})
}

func TestLoad_MissingFile(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given an unreadable config file", t, func() {
		t.Setenv("RACECHECK_CONFIG", "/non/existent/racecheck.yaml")

		cfg, err := config.Load(ctx)

		convey.Convey("Then a load error is returned", func() {
			convey.So(cfg, convey.ShouldBeNil)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestLoad_InvalidYAML(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given invalid YAML", t, func() {
		t.Setenv("RACECHECK_CONFIG", writeConfigFile(t, "invalid: yaml: content: ["))

		_, err := config.Load(ctx)

		convey.Convey("Then a load error is returned", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestLoad_InvalidNumber(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a non-numeric queue size", t, func() {
		t.Setenv("RACECHECK_QUEUE_SIZE", "lots")

		_, err := config.Load(ctx)

		convey.Convey("Then unmarshalling fails", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestLoad_EmptyAddr(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given an empty addr", t, func() {
		t.Setenv("RACECHECK_ADDR", "")

		_, err := config.Load(ctx)

		convey.Convey("Then validation fails", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
		})
	})
}
