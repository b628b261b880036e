package tangguh

// Version is the current release version of the library.
const Version = "0.3.1"
