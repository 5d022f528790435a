// Package photos stores image attachments captured with a sample.
//
// Photos reference their sample by id only; the link is not enforced, so a
// photo may outlive its sample until the cleanup pass removes it.
package photos
