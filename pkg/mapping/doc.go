// Package mapping turns source secret names into target configuration keys.
//
// A Specification holds an ordered list of rules. Each rule selects source
// names either by exact match (direct) or by regular expression (regex),
// names the target key, and carries a chain of transforms applied to that
// key in declared order.
//
// # Rule Evaluation
//
// Rules are evaluated by priority, highest first. Rules sharing a priority
// keep their declaration order, so the earliest declared rule wins a tie.
// The first matching rule produces the normalized key:
//
//	spec := &mapping.Specification{
//	    Name:            "payments",
//	    Version:         "1",
//	    DefaultBehavior: mapping.RejectUnmapped,
//	    CollisionPolicy: mapping.CollisionError,
//	    Rules: []mapping.Rule{{
//	        RuleID:         "db",
//	        StrategyType:   mapping.StrategyRegex,
//	        SourceSelector: `^payments-(?P<name>.+)$`,
//	        TargetKey:      "Payments:${name}",
//	        Priority:       100,
//	        Transforms:     []mapping.Transform{{TransformType: mapping.TransformLower}},
//	    }},
//	}
//
//	run, err := mapping.NewEngine().Run(ctx, spec, []string{"payments-DbPassword"})
//	// run.NormalizedKeys: payments:dbpassword <= payments-DbPassword
//
// Source names that match no rule are copied through unchanged under
// PassThrough, or mark the run Failed under RejectUnmapped. Processing never
// stops early; every source name is evaluated.
//
// # Collisions
//
// Two distinct source names producing the same normalized key (compared
// case-insensitively) is a collision. Every collision is recorded in the
// run's CollisionReport, then the specification's CollisionPolicy decides
// which mapping survives and whether the run fails.
//
// # Validation
//
// Validator checks a parsed document before it is used: required fields,
// unknown fields, enumerated values, rule identifier uniqueness, priority
// bounds, regex compilation and transform parameters. It returns every
// problem found as an ordered list of field/message pairs.
package mapping
