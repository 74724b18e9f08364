package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/assets"
)

// AssetsStatus describes the static asset cache.
type AssetsStatus struct {
	Dir   string `json:"dir"`
	Count int    `json:"count"`
}

type AssetsController struct {
	cache AssetStore
}

func NewAssetsController(cache AssetStore) *AssetsController {
	return &AssetsController{cache: cache}
}

// Status handles GET /local/assets
func (ac *AssetsController) Status(c *gin.Context) {
	count, err := ac.cache.Count()
	if err != nil {
		respondInternalError(c, err, "count assets")
		return
	}
	c.JSON(http.StatusOK, AssetsStatus{Dir: ac.cache.CacheDir(), Count: count})
}

// Invalidate handles DELETE /local/assets/*path. The next request for the
// asset goes to the server again.
func (ac *AssetsController) Invalidate(c *gin.Context) {
	if err := ac.cache.Invalidate(c.Param("path")); err != nil {
		if errors.Is(err, assets.ErrInvalidPath) {
			respondBadRequest(c, "asset path is required")
			return
		}
		respondInternalError(c, err, "invalidate asset")
		return
	}
	respondSuccess(c, "asset invalidated")
}
