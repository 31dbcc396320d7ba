package dispatcher

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/otel"
)

const instrumentationName = "github.com/matthewharwood/arenic-bevy-sub009/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
