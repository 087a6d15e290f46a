// Package quantity parses the compact CPU and memory notations used in
// container resource specs ("500m", "2", "128Mi", "1e9") into millicores
// and bytes. Only the notations listed on ParseCPUString and
// ParseMemoryString are accepted; anything else is a *FormatError.
package quantity
