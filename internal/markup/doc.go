// Package markup extracts time-annotated commands from README markdown.
//
// Annotations are HTML comments, so they disappear when the document is
// rendered. Three grammars are recognized independently of one another:
//
//	<!-- scroll-start time=10 --> ... <!-- scroll-end time=1:05 -->
//
//	<!-- exec time=5 -->
//	```sh
//	make run
//	```
//	<!-- /exec -->
//
//	<!-- insert time=90 filePath="main.go" searchAnchor="func main() {" -->
//	```go
//	log.Println("hello")
//	```
//	<!-- /insert -->
//
// A scroll region may contain exec and insert annotations. Output lists are
// in document order, which is not necessarily time order.
//
// # Failure Policy
//
// Parse never fails. A malformed or unterminated annotation produces no
// command; it is reported in Result.Skipped instead. An annotation whose time
// attribute does not parse is dropped rather than fired at zero.
package markup
