// Command admin runs operational tasks against the repartos database and
// queues: seeding a tenant, re-running a reconciliation, inspecting the DLQ.
package main

func main() {
	Execute()
}
