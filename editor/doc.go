/*
Package editor is the GUI-independent model of the timeline editor: the
project being edited, transport state, loop region, view settings, clip and
note editing gestures, and undo history. A user interface only reads the
model and calls its actions; sound is produced by a daw.SoundEngine the model
is given when constructed.

The model is not safe for concurrent use. It is owned by one goroutine (the
UI loop), which also drains the Broker and passes the messages to
ProcessMsg. The only other goroutine the model starts is the position
poller, and it only talks to the model through the Broker.
*/
package editor
