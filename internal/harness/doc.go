// Package harness executes YAML-defined invocation scenarios against
// the engine with scripted HTTP responses.
//
// A scenario names the CUE spec files to load, the mock responses the
// upstream should serve in request order, and a flow of invocations
// with expected outcomes. The mock server's base URL is injected as
// global_data.base_url, so spec files under test address webhooks as
// ${global_data.base_url}/path.
//
// Scenario runs are deterministic: call and session identifiers are
// fixed, and responses are scripted, so a run's step results can be
// compared against golden files.
package harness
