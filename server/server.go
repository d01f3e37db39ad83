package server

import (
	"log"
)

// Start binds the transport and blocks until Stop is called
func (s *FileServer) Start() error {
	if err := s.Transport.ListenAndAccept(); err != nil {
		return err
	}
	log.Printf("server [%s] >>> serving %s on %s\n", s.ID, s.store.Root, s.Transport.Addr())

	<-s.quitCh
	log.Printf("server [%s] >>> stopping, waiting for open connections\n", s.ID)
	return s.Transport.Close()
}

// Stop makes Start return once in-flight connections are done
func (s *FileServer) Stop() {
	s.quitOnce.Do(func() {
		close(s.quitCh)
	})
}
