/*
Package sequence turns acquisition settings into a lazy stream of events.

Each axis (position, time, channel, slice) has an Enumerator that expands a base
event into one cursor over that axis. The Iterator composes the enabled
enumerators in the nesting order of the configured order mode and walks them as
an explicit stack of cursors, so an event is materialized only when the
consumer asks for it.

TotalEvents computes the size of the stream in closed form, without running
the iterator.
*/
package sequence
