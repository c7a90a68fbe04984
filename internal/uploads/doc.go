// Package uploads ingests new media and runs background conversions.
//
// An upload is streamed into the content-addressed store, registered, and,
// when its container is not browser-playable, handed to a conversion job.
// Conversions are bounded by a worker semaphore; jobs waiting for a slot
// stay queued with a "waiting for encoder slot" message.
//
// When an encode finishes the output is committed to the store and the
// record repointed before the job is reported done. The original file is
// removed only when no other record shares it.
package uploads
