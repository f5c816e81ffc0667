package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	appcart "github.com/mochizuki-dev/marketplace/internal/application/cart"
	appcheckout "github.com/mochizuki-dev/marketplace/internal/application/checkout"
	appinventory "github.com/mochizuki-dev/marketplace/internal/application/inventory"
	apporder "github.com/mochizuki-dev/marketplace/internal/application/order"
	domainproduct "github.com/mochizuki-dev/marketplace/internal/domain/product"
	domainstore "github.com/mochizuki-dev/marketplace/internal/domain/store"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/eventbus"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/id"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/memory"
	obsprovider "github.com/mochizuki-dev/marketplace/internal/infrastructure/observability"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/observability/oteltrace"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/observability/prometrics"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/observability/zaplogger"
	infrapayment "github.com/mochizuki-dev/marketplace/internal/infrastructure/payment"
	infrasupply "github.com/mochizuki-dev/marketplace/internal/infrastructure/supply"
	"github.com/mochizuki-dev/marketplace/internal/observability"
	httppresentation "github.com/mochizuki-dev/marketplace/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "marketplace")
	env := getenvDefault("ENV", "dev")

	baseLogger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)

	registry := prometrics.New(serviceName, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests),
			"Total number of external collaborator calls.",
			"peer", "endpoint", "outcome",
		),
		observability.MCompensationActions: registry.Counter(
			string(observability.MCompensationActions),
			"Total number of checkout compensation actions.",
			"kind", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external collaborator calls in seconds.",
			nil,
			"peer", "endpoint",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			nil,
			"method", "route",
		),
	}
	tel := obsprovider.New(oteltrace.New(serviceName), baseLogger, counters, histograms)

	orderRepo := memory.NewOrderRepository()
	storeRepo := memory.NewStoreRepository()
	productRepo := memory.NewProductRepository()
	cartRepo := memory.NewCartRepository()
	idGenerator := id.NewUUIDGenerator()

	bus := eventbus.NewBus(baseLogger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	guard := appinventory.NewGuard(storeRepo, baseLogger)
	orderService := apporder.NewService(orderRepo, productRepo, guard, idGenerator, bus, baseLogger)
	cartService := appcart.NewService(cartRepo, baseLogger)

	gateway := infrapayment.NewSimulatedGateway(getenvFloat("PAYMENT_SUCCESS_RATE", 0.95))
	carrier := infrasupply.NewSimulatedCarrier(getenvFloat("SUPPLY_SUCCESS_RATE", 0.95))
	checkoutService := appcheckout.NewService(
		orderService, cartRepo, gateway, carrier, productRepo, bus, tel,
	)

	if getenvDefault("DEMO_SEED", "") == "true" {
		seedDemoData(storeRepo, productRepo)
	}

	handler := httppresentation.NewHandler(cartService, checkoutService, orderService, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("HTTP_ADDR", ":8080"),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

func seedDemoData(stores *memory.StoreRepository, products *memory.ProductRepository) {
	ctx := context.Background()
	_ = stores.Save(ctx, domainstore.New("store-1", "Books & More", map[string]int{
		"prod-1": 25,
		"prod-2": 10,
	}))
	_ = products.Save(ctx, &domainproduct.Product{
		ID: "prod-1", StoreID: "store-1", Name: "Paperback", Price: 10.0, Weight: 0.3,
	})
	_ = products.Save(ctx, &domainproduct.Product{
		ID: "prod-2", StoreID: "store-1", Name: "Hardcover", Price: 5.0, Weight: 0.6,
	})
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return def
}
