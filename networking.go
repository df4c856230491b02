package lofarcap

// DefaultStatusPort is the ZMQ PUB port used for the live statistics feed
// (§4.5's supplement) when --statusport is not given.
const DefaultStatusPort = 5500
