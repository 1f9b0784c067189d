package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"toolhub/internal/infra/localtools"
)

const calculatorPath = "/api/tools/calculator"

type toolListing struct {
	Tools []toolRecord `json:"tools"`
}

type toolRecord struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Endpoint     string               `json:"endpoint"`
	Parameters   map[string][2]string `json:"parameters"`
	CacheEnabled bool                 `json:"cache_enabled"`
	CacheRules   map[string]string    `json:"cache_rules,omitempty"`
}

var listing = toolListing{Tools: []toolRecord{{
	Name:        "calculator",
	Description: "Performs basic arithmetic on two numbers",
	Endpoint:    calculatorPath,
	Parameters: map[string][2]string{
		localtools.ParamFirstNumber:  {"int", "first operand"},
		localtools.ParamSecondNumber: {"int", "second operand"},
		localtools.ParamOperation:    {"str", "add, subtract, multiply or divide"},
	},
	CacheEnabled: true,
	CacheRules:   map[string]string{localtools.ParamOperation: "multiply"},
}}}

func newRouter(logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/tools", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, listing)
	})
	r.Post(calculatorPath, func(w http.ResponseWriter, req *http.Request) {
		var args map[string]any
		if err := json.NewDecoder(req.Body).Decode(&args); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		value, err := localtools.Calculator(req.Context(), args)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, localtools.ErrDivisionByZero) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		logger.Debug("calculated",
			zap.String("requestId", middleware.GetReqID(req.Context())),
			zap.Any("result", value),
		)
		writeJSON(w, http.StatusOK, map[string]any{"result": value})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
