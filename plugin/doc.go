// Package plugin defines the renderer contract for content items and the
// registry resolving items to their plugin.
//
// # Overview
//
// A Plugin owns exactly one content item model. It declares a CachePolicy
// (per-site, per-language, explicit timeout, or no caching at all) and
// renders concrete items into a Result:
//
//   - Output: a structured content.Output
//   - HTML: a bare fragment, wrapped with the plugin cache policy
//   - RedirectTo: a redirect request for the whole response
//   - Skip: the item contributes nothing
//
// Plugins usually embed Base for their declarative fields and only
// implement Render.
//
// # Registry
//
// A Registry is constructed explicitly and passed to the renderer. Plugins
// are registered directly or through DiscoveryFunc hooks, which run once on
// the first lookup:
//
//	reg := plugin.NewRegistry(
//		plugin.WithDiscovery(builtin.Discover),
//		plugin.WithSlotConfig(map[string][]string{"sidebar": {"text"}}),
//	)
//	if err := reg.Freeze(); err != nil {
//		return err
//	}
//
// Registration errors are configuration errors and should stop start-up:
// *AlreadyRegisteredError, *ModelAlreadyRegisteredError and *ConfigError.
// Lookup failures return *NotFoundError, matched with errors.Is against
// ErrPluginNotFound; renderers treat it as a per-item condition.
//
// The registry also implements content.Decoder: payloads are stored as
// msgpack and decoded into the value returned by the model constructor.
package plugin
