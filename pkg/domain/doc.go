/*
Package domain contains the core domain models of the acquisition engine.

It defines the acquisition event, the declarative acquisition settings and the
lifecycle stages at which hooks run. This package is kept pure and free of
external dependencies like hardware access or persistence.

# Key Entities

  - Event: one atomic unit of hardware work, indexed by its axis positions.
  - Settings: the channel, slice, time and position axes plus their nesting order.
  - Stage: the lifecycle point (before hardware, after hardware, after exposure, finished).
  - RunRecord: the persisted summary of one acquisition run.
*/
package domain
