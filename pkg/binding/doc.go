// Package binding associates document elements with typed adapters.
//
// An Input adapter reads and observes a user-editable element; an Output
// adapter materializes server values into an element. Adapters are kept in
// a Registry ordered by priority. For each element the first adapter whose
// Match accepts it governs the element, so specificity is expressed with
// priorities rather than registration order of unrelated adapters.
//
// A Scanner walks a subtree and yields a BoundElement for every element it
// binds. Bound elements are recorded in a shared Markers service and carry
// a marker class, so scanning the same subtree again skips them. Elements
// no adapter matches are ignored.
//
//	inputs := binding.NewRegistry[binding.Input]()
//	inputs.Register("text", std.TextInput{}, binding.PriorityNormal)
//
//	scanner := binding.NewInputScanner(inputs, markers, onChange)
//	for be := range scanner.Scan(doc.Body) {
//	    log.Println("bound", be.ID)
//	}
package binding
