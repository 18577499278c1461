// Package capability is a small typed composition root.
//
// Capabilities are identified by typed keys. A Builder binds each key to a
// constant value or to a Factory that declares the keys it depends on. Seal
// freezes the builder into a Resolver after checking that every declared
// dependency is bound and that the dependency graph has no cycles.
//
//	var (
//		Fetcher = capability.NewKey[fetch.Fetcher]("fetcher")
//		Client  = capability.NewKey[*ghapi.Client]("ghapi.client")
//	)
//
//	b := capability.NewBuilder()
//	capability.DefineValue(b, Fetcher, fetch.NewHTTP(nil))
//	capability.Define(b, Client, capability.Factory[*ghapi.Client]{
//		Deps: []capability.Dependency{Fetcher},
//		New: func(s capability.Scope) (*ghapi.Client, error) {
//			f, err := capability.Get(s, Fetcher)
//			if err != nil {
//				return nil, err
//			}
//			return ghapi.New(f), nil
//		},
//	})
//	r, err := b.Seal()
//
// Resolution is lazy: a capability is constructed the first time it, or
// something depending on it, is resolved. Each key is constructed at most
// once per Resolver, including under concurrent first use, and the outcome
// (value or error) is memoized.
//
// CreateInstance builds a consumer that is not itself registered, passing it
// the capabilities it declares plus caller supplied positional arguments.
//
// Binding mistakes are reported as *ConfigurationError. Defining a key after
// Seal is a programming error and panics.
package capability
