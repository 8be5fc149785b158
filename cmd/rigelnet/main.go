// Command rigelnet runs a lobby server or connects to one.
package main

func main() {
	Execute()
}
