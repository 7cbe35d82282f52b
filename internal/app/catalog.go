package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/interfaces"
	"github.com/bobmcallan/keymetrics/internal/models"
	"github.com/bobmcallan/keymetrics/internal/services/metrics"
)

// InvokeFunc runs a capability with validated arguments.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

// Capability is one callable operation exposed to the conversational layer.
type Capability struct {
	models.ToolDefinition
	invoke InvokeFunc
}

// ToolDeps are the services the capabilities call into.
type ToolDeps struct {
	Metrics    interfaces.MetricsService
	Statements interfaces.StatementService
	Logger     *common.Logger
}

var (
	tickerParam = models.ParamDefinition{
		Name:        "ticker",
		Type:        "string",
		Description: "Ticker symbol, e.g. AAPL",
		Required:    true,
	}
	granularityParam = models.ParamDefinition{
		Name:        "granularity",
		Type:        "string",
		Description: "Reporting period: annual or quarter",
		Default:     "annual",
	}
	forceParam = models.ParamDefinition{
		Name:        "force",
		Type:        "boolean",
		Description: "Refetch from upstream even when cached rows are fresh",
		Default:     false,
	}
)

// BuildCapabilities returns the capability catalog bound to deps.
func BuildCapabilities(deps ToolDeps) []Capability {
	statementLimit := models.ParamDefinition{
		Name:        "limit",
		Type:        "number",
		Description: "Number of periods to return (1-12, default 12)",
		Default:     12,
	}

	return []Capability{
		{
			ToolDefinition: models.ToolDefinition{
				Name:        "get_key_metrics",
				Description: "Get derived valuation and leverage ratios (P/E, forward P/E, PEG, P/B, D/E, ROE) with year-over-year changes, trailing averages and a valuation score.",
				Params: []models.ParamDefinition{
					tickerParam,
					granularityParam,
					{
						Name:        "limit",
						Type:        "number",
						Description: "Number of periods of history (1-20, default 5)",
						Default:     5,
					},
				},
			},
			invoke: func(ctx context.Context, args map[string]any) (any, error) {
				return deps.Metrics.GetKeyMetrics(ctx, stringArg(args, "ticker"), stringArg(args, "granularity"), intArg(args, "limit"))
			},
		},
		{
			ToolDefinition: models.ToolDefinition{
				Name:        "get_metrics_glossary",
				Description: "Explain each key metric (definition, formula) using the ticker's latest derived values as worked examples.",
				Params:      []models.ParamDefinition{tickerParam, granularityParam},
			},
			invoke: func(ctx context.Context, args map[string]any) (any, error) {
				result, err := deps.Metrics.GetKeyMetrics(ctx, stringArg(args, "ticker"), stringArg(args, "granularity"), 0)
				if err != nil {
					return nil, err
				}
				g := metrics.BuildGlossary(result, time.Now())
				if g == nil {
					return nil, fmt.Errorf("no metrics for %s: %w", stringArg(args, "ticker"), common.ErrNotFound)
				}
				return g, nil
			},
		},
		{
			ToolDefinition: models.ToolDefinition{
				Name:        "get_income_statements",
				Description: "Get income statements (revenue, net income, EPS) newest first.",
				Params:      []models.ParamDefinition{tickerParam, granularityParam, statementLimit, forceParam},
			},
			invoke: func(ctx context.Context, args map[string]any) (any, error) {
				g, err := models.ParseGranularity(stringArg(args, "granularity"))
				if err != nil {
					return nil, err
				}
				return deps.Statements.GetIncomeStatements(ctx, stringArg(args, "ticker"), g, intArg(args, "limit"), boolArg(args, "force"))
			},
		},
		{
			ToolDefinition: models.ToolDefinition{
				Name:        "get_balance_sheets",
				Description: "Get balance sheets with equity computed as total assets minus total liabilities, newest first.",
				Params:      []models.ParamDefinition{tickerParam, granularityParam, statementLimit, forceParam},
			},
			invoke: func(ctx context.Context, args map[string]any) (any, error) {
				g, err := models.ParseGranularity(stringArg(args, "granularity"))
				if err != nil {
					return nil, err
				}
				return deps.Statements.GetBalanceSheets(ctx, stringArg(args, "ticker"), g, intArg(args, "limit"), boolArg(args, "force"))
			},
		},
		{
			ToolDefinition: models.ToolDefinition{
				Name:        "get_cash_flows",
				Description: "Get cash flow statements newest first with an analysis of cash conversion, free cash flow margin and shareholder returns.",
				Params:      []models.ParamDefinition{tickerParam, granularityParam, statementLimit, forceParam},
			},
			invoke: func(ctx context.Context, args map[string]any) (any, error) {
				g, err := models.ParseGranularity(stringArg(args, "granularity"))
				if err != nil {
					return nil, err
				}
				return deps.Statements.GetCashFlowReport(ctx, stringArg(args, "ticker"), g, intArg(args, "limit"), boolArg(args, "force"))
			},
		},
	}
}

// Definitions returns the descriptors of caps.
func Definitions(caps []Capability) []models.ToolDefinition {
	defs := make([]models.ToolDefinition, len(caps))
	for i, c := range caps {
		defs[i] = c.ToolDefinition
	}
	return defs
}

// Lookup finds a capability by name.
func Lookup(caps []Capability, name string) (*Capability, bool) {
	for i := range caps {
		if caps[i].Name == name {
			return &caps[i], true
		}
	}
	return nil, false
}

// Invoke validates args against the parameter definitions, fills defaults and
// runs the capability under a correlation id.
func (c *Capability) Invoke(ctx context.Context, logger *common.Logger, args map[string]any) (any, error) {
	ctx, correlationID := common.EnsureCorrelationID(ctx)
	log := logger.WithCorrelation(correlationID)

	resolved, err := c.resolveArgs(args)
	if err != nil {
		log.Warn().Str("capability", c.Name).Err(err).Msg("Rejected capability arguments")
		return nil, err
	}

	start := time.Now()
	out, err := c.invoke(ctx, resolved)
	if err != nil {
		log.Warn().Str("capability", c.Name).Err(err).Dur("elapsed", time.Since(start)).Msg("Capability failed")
		return nil, err
	}

	log.Info().Str("capability", c.Name).Str("caller", common.ResolveCallerID(ctx)).Dur("elapsed", time.Since(start)).Msg("Capability invoked")
	return out, nil
}

func (c *Capability) resolveArgs(args map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		v, ok := args[p.Name]
		if !ok || v == nil || v == "" {
			if p.Required {
				return nil, fmt.Errorf("%s: missing required parameter %q: %w", c.Name, p.Name, common.ErrInvalidArgument)
			}
			if p.Default != nil {
				resolved[p.Name] = p.Default
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return nil, fmt.Errorf("%s: parameter %q must be a %s: %w", c.Name, p.Name, p.Type, common.ErrInvalidArgument)
		}
		resolved[p.Name] = v
	}

	for name := range args {
		if !c.hasParam(name) {
			return nil, fmt.Errorf("%s: unknown parameter %q: %w", c.Name, name, common.ErrInvalidArgument)
		}
	}
	return resolved, nil
}

func (c *Capability) hasParam(name string) bool {
	for _, p := range c.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func typeMatches(kind string, v any) bool {
	switch kind {
	case "string":
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	case "number":
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	}
	return true
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func intArg(args map[string]any, name string) int {
	switch n := args[name].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
