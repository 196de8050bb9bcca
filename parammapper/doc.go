package parammapper

// Package parammapper renames and converts inbound request parameters before
// a handler runs, for gRPC services, grpc-gateway handlers and net/http.
//
// Rules are declared per handler unit (a controller, or for gRPC a service)
// and are applied in order to a copy of the request's parameter mapping:
// the source key is removed and its value, optionally converted, is stored
// under the destination key.
//
// # Basic Usage
//
//	mapper, err := parammapper.NewBuilder().
//		Controller("accounts.Accounts").
//		Rename("username", "login").
//		Rename("admin", "role").
//		WithEnum(parammapper.When("true").Then([]string{"admin"})).
//		Build()
//
//	grpcServer := grpc.NewServer(
//		grpc.UnaryInterceptor(mapper.UnaryServerInterceptor()),
//		grpc.StreamInterceptor(mapper.StreamServerInterceptor()),
//	)
//
// # Features
//
//   - Key renaming with enumerated or function value converters
//   - Per-action filtering with only / except lists
//   - Rule inheritance through an explicit parent unit
//   - gRPC interceptors, grpc-gateway and net/http adapters
//   - YAML/JSON configuration with named converters
//
// # Converters
//
// An enumerated converter maps raw values by membership in ordered cases;
// the first case accepting the value wins and unmatched values pass through:
//
//	parammapper.Enum(
//		parammapper.When("true", "yes").Then("admin"),
//		parammapper.When("false", "no").Then("guest"),
//	)
//
// A function converter may fail; the error aborts the request:
//
//	parammapper.Chain(parammapper.TrimSpace, parammapper.ScaleInt(100))
//
// # Filters
//
// Only and Except name the actions a rule applies to. They cannot be
// combined on one rule. A request without a known action never matches
// either of them.
//
// # Ordering
//
// Inherited rules run before a unit's own rules. Rules are applied one at a
// time, so a later rule can rename the destination of an earlier one.
