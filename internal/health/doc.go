// Package health backs the /-/healthy and /-/ready endpoints served on both
// the public and the ops listener.
//
// Liveness is fixed: if the process can answer, it is alive. Readiness is
// the conjunction of the shutdown gate and "a content bundle is loaded",
// built with [All] from [CheckFunc] values. Closing the [ShutdownGate] fails
// readiness at once so the load balancer stops routing before the server
// drains.
package health
