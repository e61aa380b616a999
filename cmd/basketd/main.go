package main

import (
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	"basketcore/config"
	"basketcore/events"
	"basketcore/observability"
	"basketcore/observability/logging"
	"basketcore/registry"
)

const serviceName = "basketd"

func main() {
	configPath := flag.String("config", "basketd.toml", "path to the daemon configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "basketd: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(serviceName, cfg.ServiceEnv)

	reg := buildRegistry(cfg)
	recorder := &events.Recorder{}
	token, err := buildBasket(cfg, reg, countingEmitter{next: recorder})
	if err != nil {
		logger.Error("build basket", "error", err)
		os.Exit(1)
	}

	srv := newServer(token, recorder, logger)
	logger.Info("listening", "address", cfg.ListenAddress, "basket", token.Address().Hex())
	if err := http.ListenAndServe(cfg.ListenAddress, srv.router()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}

func buildRegistry(cfg *config.Config) *registry.Static {
	reg := registry.NewStatic()
	for _, module := range cfg.Registry.Modules {
		reg.AddModule(ethcommon.HexToAddress(module))
	}
	for _, basketAddr := range cfg.Registry.Baskets {
		reg.AddBasket(ethcommon.HexToAddress(basketAddr))
	}
	for _, adapter := range cfg.Registry.Adapters {
		reg.SetAdapter(ethcommon.HexToAddress(adapter.Module), adapter.Name, ethcommon.HexToAddress(adapter.Address))
	}
	for _, fee := range cfg.Registry.Fees {
		amount, _ := new(big.Int).SetString(fee.Fee, 10)
		reg.SetModuleFee(ethcommon.HexToAddress(fee.Module), fee.Index, amount)
	}
	if cfg.Registry.FeeRecipient != "" {
		reg.SetFeeRecipient(ethcommon.HexToAddress(cfg.Registry.FeeRecipient))
	}
	reg.AddBasket(cfg.BasketAddress())
	return reg
}

func buildBasket(cfg *config.Config, reg registry.Registry, emitter events.Emitter) (*basket.Token, error) {
	components := make([]basket.Component, 0, len(cfg.Basket.Components))
	for _, component := range cfg.Basket.Components {
		components = append(components, basket.Component{
			Address: ethcommon.HexToAddress(component.Address),
			Unit:    component.ParsedUnit(),
		})
	}
	return basket.New(basket.Config{
		Address:    cfg.BasketAddress(),
		Name:       cfg.Basket.Name,
		Symbol:     cfg.Basket.Symbol,
		Manager:    cfg.ManagerAddress(),
		Registry:   reg,
		Executor:   inertExecutor{},
		Emitter:    emitter,
		Components: components,
	})
}

// inertExecutor satisfies the basket's executor requirement for the
// read-only daemon; the inspector never routes a mutation through Invoke.
type inertExecutor struct{}

func (inertExecutor) Execute(from, target ethcommon.Address, value *big.Int, data []byte) ([]byte, error) {
	return nil, errors.New("basketd: outbound calls are disabled")
}

// countingEmitter feeds the ledger event counter before handing the event
// to the next sink.
type countingEmitter struct {
	next events.Emitter
}

func (e countingEmitter) Emit(evt *events.Event) {
	observability.GatewayMetrics().CountEvent()
	if e.next != nil {
		e.next.Emit(evt)
	}
}
