package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/engine"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/app/dex"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

// Server exposes read-only views of the exchange over REST and pushes trades and
// book changes over WebSocket. Orders are not accepted here.
type Server struct {
	app    *dex.App
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger

	corsOrigins []string
	httpServer  *http.Server
}

func NewServer(app *dex.App, corsOrigins []string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		app:         app,
		router:      mux.NewRouter(),
		hub:         NewHub(logger.Named("ws")),
		log:         logger,
		corsOrigins: corsOrigins,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	app.OnOrderProcessed(s.publish)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/assets/{symbol}", s.handleGetAsset).Methods("GET")

	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orders/{id}", s.handleGetOrder).Methods("GET")

	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")

	api.HandleFunc("/state", s.handleGetState).Methods("GET")

	s.router.Handle("/metrics", promhttp.HandlerFor(s.app.Metrics().Registry(), promhttp.HandlerOpts{}))
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router behind the CORS layer.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves on addr until Shutdown. It returns http.ErrServerClosed after a clean
// shutdown, including one that happened before Start was called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	go s.hub.Run()
	s.log.Infow("api_started", "addr", ln.Addr().String(), "cors", s.corsOrigins)
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.app.Assets()
	response := make([]AssetInfo, len(assets))
	for i, a := range assets {
		response[i] = s.assetInfo(a)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.app.GetAsset(asset.Symbol(mux.Vars(r)["symbol"]))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, s.assetInfo(a))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	depth, err := s.app.Depth(asset.Symbol(mux.Vars(r)["symbol"]))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, orderbookSnapshot(depth))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	trades, err := s.app.RecentTrades(asset.Symbol(mux.Vars(r)["symbol"]), limit)
	if err != nil {
		respondAppError(w, err)
		return
	}
	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = tradeInfo(t)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", vars["id"])
		return
	}

	o, ok, err := s.app.Order(asset.Symbol(vars["symbol"]), orderbook.OrderID(id))
	if err != nil {
		respondAppError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "order not resting", vars["id"])
		return
	}
	respondJSON(w, OrderInfo{
		ID:        uint64(o.ID),
		Asset:     string(o.Asset),
		Side:      o.Side.String(),
		Trader:    o.Trader.Hex(),
		Price:     o.Price,
		Size:      o.Qty,
		Remaining: o.Remaining,
		CreatedAt: o.CreatedAt,
	})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", addressStr)
		return
	}
	addr := common.HexToAddress(addressStr)

	balances := s.app.Balances(addr)
	response := AccountBalances{Address: addr.Hex(), Balances: []BalanceInfo{}}
	for _, sym := range s.app.ListAssets() {
		b, ok := balances[sym]
		if !ok {
			continue
		}
		response.Balances = append(response.Balances, BalanceInfo{
			Asset:     string(sym),
			Available: b.Available,
			Held:      b.Held,
		})
	}
	respondJSON(w, response)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	info := StateInfo{StateHash: s.app.StateHash().Hex(), Markets: []string{}}
	for _, sym := range s.app.ListAssets() {
		if sym != s.app.QuoteAsset() {
			info.Markets = append(info.Markets, string(sym))
		}
	}
	respondJSON(w, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcasts
// ==============================

// publish pushes the trades of a processed order and the resulting book.
func (s *Server) publish(res engine.Result) {
	for _, t := range res.Trades {
		s.hub.BroadcastToChannel("trades:"+string(t.Asset), TradeUpdate{Type: "trade", TradeInfo: tradeInfo(t)})
	}

	depth, err := s.app.Depth(res.Asset)
	if err != nil {
		return
	}
	s.hub.BroadcastToChannel("orderbook:"+string(res.Asset), OrderbookUpdate{
		Type:              "orderbook",
		OrderbookSnapshot: orderbookSnapshot(depth),
	})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) assetInfo(a asset.Asset) AssetInfo {
	return AssetInfo{
		Symbol:  string(a.Symbol),
		Custody: a.Custody.Hex(),
		Index:   a.Index,
		Quote:   a.Symbol == s.app.QuoteAsset(),
	}
}

func orderbookSnapshot(depth engine.BookSnapshot) OrderbookSnapshot {
	bids := make([]PriceLevel, len(depth.Bids))
	for i, l := range depth.Bids {
		bids[i] = PriceLevel{Price: l.Price, Size: l.Qty, Orders: l.Orders}
	}
	asks := make([]PriceLevel, len(depth.Asks))
	for i, l := range depth.Asks {
		asks[i] = PriceLevel{Price: l.Price, Size: l.Qty, Orders: l.Orders}
	}
	return OrderbookSnapshot{
		Asset:     string(depth.Asset),
		Bids:      bids,
		Asks:      asks,
		BestBid:   depth.BestBid,
		BestAsk:   depth.BestAsk,
		LastPrice: depth.LastPrice,
		Timestamp: time.Now().UnixMilli(),
	}
}

func tradeInfo(t engine.Trade) TradeInfo {
	return TradeInfo{
		ID:        t.ID.String(),
		Seq:       t.Seq,
		Asset:     string(t.Asset),
		Price:     t.Price,
		Size:      t.Qty,
		Side:      t.TakerSide.String(),
		Timestamp: t.Timestamp,
	}
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func respondAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, asset.ErrUnknownAsset):
		respondError(w, http.StatusNotFound, "unknown asset", err.Error())
	case errors.Is(err, engine.ErrQuoteAsset):
		respondError(w, http.StatusBadRequest, "quote asset has no market", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
