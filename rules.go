package props

import (
	"fmt"
	"time"
)

// Evaluate executes expr against a snapshot of every property's current value
// using the store's configured evaluator, falling back to a default expr
// engine wired with the store's cache and function registry.
func (s *Store) Evaluate(expr string) (any, error) {
	return s.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx, snapshotting current property values
// when ctx.Snapshot is nil.
func (s *Store) EvaluateWith(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("props: expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	if ctx.Snapshot == nil {
		values, err := s.GetAll()
		if err != nil {
			return nil, err
		}
		ctx.Snapshot = values
	}
	ctx = ctx.withDefaults()
	return s.runRule(evaluator, ctx, expr)
}

// DefineDerivedRule registers a derived property whose computation is a rule
// expression. Dependency values are bound by property name, so
// "length * width" computes an area from deps ["length", "width"]. The
// expression compiles once at definition time.
func (s *Store) DefineDerivedRule(name string, deps []string, expr string, opts ...DerivedOption) error {
	if expr == "" {
		return fmt.Errorf("props: expression must not be empty for %s", name)
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return err
	}
	rule, err := evaluator.Compile(expr)
	if err != nil {
		return wrapEvaluationError(evaluatorEngineName(evaluator), expr, name, err)
	}

	bound := append([]string(nil), deps...)
	compute := func(values ...any) (any, error) {
		snapshot := make(map[string]any, len(bound))
		for i, dep := range bound {
			if i < len(values) {
				snapshot[dep] = values[i]
			}
		}
		ctx := RuleContext{Snapshot: snapshot, Property: name}.withDefaults()
		engine := evaluatorEngineName(evaluator)
		start := time.Now()
		value, evalErr := rule.Evaluate(ctx)
		duration := time.Since(start)
		evalErr = wrapEvaluationError(engine, expr, name, evalErr)
		s.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     expr,
			Property: name,
			Duration: duration,
			Err:      evalErr,
		})
		if evalErr != nil {
			return nil, evalErr
		}
		return value, nil
	}
	return s.DefineDerived(name, bound, compute, opts...)
}

// RuleValidator builds a Validator from a boolean rule expression. The
// proposed value is bound as "value"; a false or non-boolean result rejects
// the write.
func RuleValidator(evaluator Evaluator, expr string) Validator {
	return func(value any) error {
		result, err := evaluator.Evaluate(RuleContext{Value: value}.withDefaults(), expr)
		if err != nil {
			return err
		}
		accepted, ok := result.(bool)
		if !ok {
			return fmt.Errorf("props: validator rule %q returned %T, want bool", expr, result)
		}
		if !accepted {
			return fmt.Errorf("props: rule %q rejected value %v", expr, value)
		}
		return nil
	}
}

// RuleChangePredicate builds a ChangePredicate from a boolean rule
// expression. The new value is bound as "value" and the previous one as
// "old". Evaluation failures and non-boolean results count as changed so
// notification errs on the side of delivery.
func RuleChangePredicate(evaluator Evaluator, expr string) ChangePredicate {
	return func(newValue, oldValue any) bool {
		result, err := evaluator.Evaluate(RuleContext{Value: newValue, Old: oldValue}.withDefaults(), expr)
		if err != nil {
			return true
		}
		changed, ok := result.(bool)
		if !ok {
			return true
		}
		return changed
	}
}

func (s *Store) runRule(evaluator Evaluator, ctx RuleContext, expr string) (any, error) {
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	err = wrapEvaluationError(engine, expr, ctx.Property, err)
	s.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Property: ctx.Property,
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) resolveEvaluator() (Evaluator, error) {
	if s.cfg.evaluator != nil {
		return s.cfg.evaluator, nil
	}
	exprOpts := []ExprEvaluatorOption{}
	if cache := s.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := s.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	evaluator := NewExprEvaluator(exprOpts...)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	s.cfg.evaluator = evaluator
	return evaluator, nil
}

func (s *Store) evaluatorLogger() EvaluatorLogger {
	if s.cfg.logger != nil {
		return s.cfg.logger
	}
	return noopEvaluatorLogger{}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*props.exprEvaluator":
		return "expr"
	case "*props.celEvaluator":
		return "cel"
	case "*props.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
