package console

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/attendance"
	"github.com/skyunix/goinspur/internal/config"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
)

const (
	locateAttempts = 5
	pickerURL      = "https://lbs.amap.com/tools/picker"
)

type LocationStore interface {
	SaveDefaultLocation(p models.Point) error
}

// Locator asks for the search coordinates, offering the configured default.
// Newly typed coordinates become the default.
type Locator struct {
	prompter prompt.Prompter
	store    LocationStore
	def      *models.Point
	log      zerolog.Logger
}

func NewLocator(p prompt.Prompter, store LocationStore, def *models.Point, log zerolog.Logger) *Locator {
	return &Locator{
		prompter: p,
		store:    store,
		def:      def,
		log:      log.With().Str("component", "locator").Logger(),
	}
}

func (l *Locator) Locate(ctx context.Context) (models.Point, error) {
	for attempt := 1; attempt <= locateAttempts; attempt++ {
		text := "Coordinates as longitude,latitude (pick them at " + pickerURL + ")"
		if l.def != nil {
			text = "Coordinates as longitude,latitude (enter to keep " + config.FormatLocation(*l.def) + ")"
		}

		line, err := l.prompter.PromptLine(ctx, text)
		if err != nil {
			return models.Point{}, err
		}

		if line == "" {
			if l.def != nil {
				return *l.def, nil
			}
			l.log.Warn().Msg("coordinates are required")
			continue
		}

		p, err := config.ParseLocation(line)
		if err != nil {
			l.log.Warn().Err(err).Int("remaining", locateAttempts-attempt).Msg("invalid coordinates")
			continue
		}
		if err := l.store.SaveDefaultLocation(p); err != nil {
			l.log.Warn().Err(err).Msg("save coordinates failed")
		}
		l.def = &p
		l.log.Info().Str("location", config.FormatLocation(p)).Msg("using new coordinates")
		return p, nil
	}
	return models.Point{}, attendance.ErrNoLocation
}
