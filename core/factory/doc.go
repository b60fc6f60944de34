// Package factory instantiates pluggable modules, such as metric sinks and
// solver engines, from configuration. A module is selected by its type name
// and receives its raw settings, which it decodes with Decode:
//
//	reg := factory.NewRegistry[solver.Factory]()
//	_ = reg.Register("milp", func(conf map[string]any) (solver.Factory, error) {
//	    var c milp.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return milp.NewFactory(c), nil
//	})
//	f, err := reg.Create(factory.ModuleConfig{Type: "milp", Conf: map[string]any{"max_nodes": 5000}})
package factory
