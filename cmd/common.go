/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/booktran/internal/cache"
	"github.com/valpere/booktran/internal/engine"
	"github.com/valpere/booktran/internal/jobstore"
	"github.com/valpere/booktran/internal/monitor"
	"github.com/valpere/booktran/internal/refiner"
	"github.com/valpere/booktran/internal/translator"
)

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildTranslator constructs the machine translation service selected by
// configuration.
func buildTranslator() (translator.Service, error) {
	switch name := viper.GetString("service"); name {
	case "google":
		return translator.NewGoogleService(viper.GetString("google-credentials")), nil
	case "mymemory":
		return translator.NewMyMemoryService(viper.GetString("mymemory-email"), nil), nil
	default:
		return nil, fmt.Errorf("unknown translation service: %s", name)
	}
}

// refinerFactory returns per-model Ollama refiners sharing one pooled
// HTTP client.
func refinerFactory() engine.RefinerFactory {
	client := &http.Client{Timeout: 30 * time.Minute}
	baseURL := viper.GetString("ollama-url")
	return func(model string) refiner.Refiner {
		return refiner.NewOllamaRefiner(model, baseURL, client)
	}
}

type services struct {
	cache   *cache.Cache
	store   *jobstore.Store
	monitor *monitor.Monitor
	engine  *engine.Engine
	ollama  *refiner.OllamaRefiner
}

// buildServices opens the databases and wires the translation engine.
// Callers own closing cache and store.
func buildServices(cfg engine.Config, log *zap.Logger) (*services, error) {
	c, err := cache.New(viper.GetString("cache-db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	store, err := jobstore.New(viper.GetString("db"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}

	svc, err := buildTranslator()
	if err != nil {
		c.Close()
		store.Close()
		return nil, err
	}

	mon := monitor.New()
	return &services{
		cache:   c,
		store:   store,
		monitor: mon,
		engine:  engine.New(svc, refinerFactory(), c, store, mon, cfg, log),
		ollama:  refiner.NewOllamaRefiner("", viper.GetString("ollama-url"), nil),
	}, nil
}

func (s *services) close() {
	s.store.Close()
	s.cache.Close()
}
