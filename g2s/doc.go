/*
	Package g2s provides types, constants, and functions that have no other dependencies
	and can be used by all packages within g2s.  This includes the axis and coordinate
	model shared by the acquisition side (sparse axis/index pairs) and the storage side
	(dense coordinate vectors), the error taxonomy, image and metadata documents,
	serialization, configuration maps and logging.
*/
package g2s
