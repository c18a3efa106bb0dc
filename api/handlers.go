package api

import (
	"context"
	"net/http"

	"github.com/michaelpento.lv/swapquote/quote"
	"github.com/michaelpento.lv/swapquote/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuoteService answers parsed quote requests
type QuoteService interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Result, error)
}

// NetworkCatalog lists the networks the service quotes on
type NetworkCatalog interface {
	NetworkIDs() []string
	Network(id string) (*types.Network, error)
}

// QuoteQuery holds the query parameters of the quote endpoints
type QuoteQuery struct {
	From     string `form:"from" binding:"required"`
	To       string `form:"to" binding:"required"`
	Amount   string `form:"amount" binding:"required"`
	Slippage string `form:"slippage"`
	Sender   string `form:"sender"`
	Family   string `form:"family"`
}

type QuoteHandler struct {
	service         QuoteService
	defaultSlippage int64
	logger          *zap.Logger
}

func NewQuoteHandler(service QuoteService, defaultSlippage int64, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		service:         service,
		defaultSlippage: defaultSlippage,
		logger:          logger.Named("quote_handler"),
	}
}

// SetRoutes registers the generic endpoint under api and the family bound
// aliases under root
func (h *QuoteHandler) SetRoutes(root, api *gin.RouterGroup) {
	api.GET("/quote/:network", h.getQuote(""))
	root.GET("/route2/:network", h.getQuote(types.ConstantProduct))
	root.GET("/route3/:network", h.getQuote(types.ConcentratedLiquidity))
}

func (h *QuoteHandler) getQuote(family types.ProtocolFamily) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query QuoteQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			BadRequest(c, "from, to and amount are required")
			return
		}
		if family != "" {
			query.Family = string(family)
		}

		req, err := quote.ParseRequest(quote.RawRequest{
			Network:  c.Param("network"),
			From:     query.From,
			To:       query.To,
			Amount:   query.Amount,
			Slippage: query.Slippage,
			Sender:   query.Sender,
			Family:   query.Family,
		}, h.defaultSlippage)
		if err != nil {
			HandleError(c, err)
			return
		}

		result, err := h.service.Quote(c.Request.Context(), req)
		if err != nil {
			if StatusFor(err) == http.StatusInternalServerError {
				h.logger.Error("Failed to quote",
					zap.String("network", req.NetworkID),
					zap.String("request_id", c.GetString(requestIDKey)),
					zap.Error(err))
			}
			HandleError(c, err)
			return
		}

		Success(c, result)
	}
}

type NetworkHandler struct {
	catalog NetworkCatalog
}

func NewNetworkHandler(catalog NetworkCatalog) *NetworkHandler {
	return &NetworkHandler{catalog: catalog}
}

func (h *NetworkHandler) SetRoutes(api *gin.RouterGroup) {
	api.GET("/networks", h.listNetworks)
}

// NetworkView is the public description of a network
type NetworkView struct {
	ID        string           `json:"id"`
	ChainID   uint64           `json:"chain_id"`
	BasePairs []types.Token    `json:"base_pairs"`
	Exchanges []types.Exchange `json:"exchanges"`
}

func (h *NetworkHandler) listNetworks(c *gin.Context) {
	ids := h.catalog.NetworkIDs()
	views := make([]NetworkView, 0, len(ids))
	for _, id := range ids {
		n, err := h.catalog.Network(id)
		if err != nil {
			HandleError(c, err)
			return
		}

		// only exchanges deployed on the network can quote
		exchanges := make([]types.Exchange, 0, len(n.Exchanges))
		for _, ex := range n.Exchanges {
			if _, ok := n.Deployment(ex.ID); ok {
				exchanges = append(exchanges, ex)
			}
		}

		views = append(views, NetworkView{
			ID:        n.ID,
			ChainID:   n.ChainID,
			BasePairs: n.BasePairs,
			Exchanges: exchanges,
		})
	}
	Success(c, views)
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
