/*
Package datastore provides the Dataset, the coordination layer between acquisition code
that tags images with sparse axis coordinates and a storage engine that addresses them
densely.  A Dataset negotiates its shape once, translates and bounds-checks every
coordinate, and keeps a write-through cache so images are readable the moment PutImage
returns, whatever the engine's own durability path.
*/
package datastore
