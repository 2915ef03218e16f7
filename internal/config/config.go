package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultRolloverHorizon = 36

type Application struct {
	Host     string   `koanf:"host"`
	Database Database `koanf:"db"`
	Rollover Rollover `koanf:"rollover"`
	Kafka    Kafka    `koanf:"kafka"`
	Sheets   Sheets   `koanf:"sheets"`
}

type Database struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Pass     string `koanf:"pass"`
	Name     string `koanf:"name"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"maxconns"`
}

type Rollover struct {
	// Horizon is the maximum number of months a single chain recomputation walks forward.
	Horizon int `koanf:"horizon"`
}

// Kafka configures the optional audit stream. The stream is disabled when Brokers is empty.
type Kafka struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type Sheets struct {
	SpreadsheetId   string `koanf:"spreadsheetid"`
	CredentialsFile string `koanf:"credentialsfile"`
	SheetName       string `koanf:"sheetname"`
}

func defaults() Application {
	return Application{
		Host: "http://localhost:8181",
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "fintrack",
			Pass:     "",
			Name:     "fintrack",
			Schema:   "fintrack",
			MaxConns: 25,
		},
		Rollover: Rollover{
			Horizon: DefaultRolloverHorizon,
		},
		Kafka: Kafka{
			Topic: "ledger_audit",
		},
		Sheets: Sheets{
			SheetName: "Reconciliation",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "FINTRACK_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "FINTRACK_")), "_", ".")
			// comma separated lists, e.g. FINTRACK_KAFKA_BROKERS=a:9092,b:9092
			if k == "kafka.brokers" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	if app.Rollover.Horizon <= 0 {
		log.Warnf("invalid rollover horizon %d, falling back to %d", app.Rollover.Horizon, DefaultRolloverHorizon)
		app.Rollover.Horizon = DefaultRolloverHorizon
	}

	return app, nil
}
