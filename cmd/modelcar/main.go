// Command modelcar downloads a Hugging Face model and publishes it as an OCI
// image that KServe can mount as model storage.
package main

func main() {
	Execute()
}
