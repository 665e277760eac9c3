package guidance

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"
)

//StartServices brings up the guidance session and, when httpPort is set, the control surface.
//Returns when the session ends or on shutdown signal, after every subroutine stopped
func StartServices(log *log.Logger,
	session *Session,
	db *sqlx.DB,
	httpPort int,
	shutdownSignal chan os.Signal) error {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := sync.WaitGroup{}
	if httpPort > 0 {
		wg.Add(1)
		go RunWebService(ctx, log, &wg, session, db, httpPort)
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- session.Run(ctx)
	}()

	var err error
	select {
	case <-shutdownSignal:
		log.Printf("Exiting on shutdown signal, shutting down subroutines")
		cancel()
		err = <-sessionDone
	case err = <-sessionDone:
		cancel()
	}
	wg.Wait()
	log.Printf("Subroutines shut down, exiting guidance service")
	return err
}
