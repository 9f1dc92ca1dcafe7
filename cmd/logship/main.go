// Command logship feeds newline-delimited JSON entries into a logbeacon
// pipeline and manages the entries a previous run could not deliver.
package main

func main() {
	Execute()
}
