// Package diag serves the coordinator's read-only observable state over a
// local HTTP endpoint, for UI indicators and debugging.
package diag

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/domain"
	"github.com/dkeye/meshvoice/internal/mesh"
)

// StateSource is what the coordinator exposes for observation.
type StateSource interface {
	State() mesh.ChannelState
	ChannelID() domain.ChannelID
	Muted() bool
	Participants() []domain.Participant
	Speaking() []domain.UserID
	PeerStates() []mesh.PeerStatus
}

func SetupRouter(mode string, src StateSource) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/voice/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":        src.State().String(),
			"channel":      src.ChannelID(),
			"muted":        src.Muted(),
			"participants": src.Participants(),
			"speaking":     src.Speaking(),
			"peers":        src.PeerStates(),
		})
	})

	log.Info().Str("module", "diag").Msg("router setup")
	return r
}
