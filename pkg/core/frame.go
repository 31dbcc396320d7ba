package core

// Frame is the frozen arena clock reading shared by every player in one tick.
type Frame struct {
	Now     TimeStamp
	Delta   TimeStamp
	Wrapped bool   // the clock passed the cycle length during this tick
	Cycle   uint64 // completed cycles, counting this tick's wrap
}
