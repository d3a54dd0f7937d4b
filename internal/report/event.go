package report

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/racecheck"
)

// EventFile is the classification setup of one event as kept on disk:
//
//	name: Maratón de Otoño
//	modalities:
//	  - name: 42K
//	    categories:
//	      - {name: Elite, matchs_with: M-Elite}
//	genders:
//	  - {name: Masculino, matchs_with: M}
type EventFile struct {
	Name       string               `koanf:"name"`
	Modalities []racecheck.Modality `koanf:"modalities"`
	Genders    []racecheck.Gender   `koanf:"genders"`
}

// LoadEventFile reads and validates a YAML event file.
func LoadEventFile(path string) (EventFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return EventFile{}, fmt.Errorf("%w: %s: %w", ErrLoadEvent, path, err)
	}
	var ev EventFile
	if err := k.UnmarshalWithConf("", &ev, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return EventFile{}, fmt.Errorf("%w: %s: %w", ErrLoadEvent, path, err)
	}
	if err := model.ValidateConfig(ev.Modalities, ev.Genders); err != nil {
		return EventFile{}, fmt.Errorf("%w: %s: %w", ErrLoadEvent, path, err)
	}
	return ev, nil
}
