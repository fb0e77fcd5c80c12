/**
 * @description
 * Shared dependencies every REST handler group is constructed with. Kept
 * as one small struct rather than threading five constructor arguments
 * through each handler.
 */

package handlers

import (
	"gorm.io/gorm"

	"github.com/polysleuth/forensics/internal/alertbus"
	"github.com/polysleuth/forensics/internal/chain"
	"github.com/polysleuth/forensics/internal/config"
	"github.com/polysleuth/forensics/internal/market"
	"github.com/polysleuth/forensics/internal/store"
	"github.com/polysleuth/forensics/internal/stream"
)

// Deps bundles the collaborators REST handlers read from or drive.
type Deps struct {
	Store    *store.Store
	Stream   *stream.Controller
	Bus      *alertbus.Bus
	DB       *gorm.DB
	Resolver *market.Resolver
	Chain    *chain.Client
	Config   *config.Config
}
