package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketarc/service"
)

// The book endpoint kept its original short parameter names (type, region)
// while the other endpoints use the long forms. Both shapes are load-bearing
// for existing clients.

func (s *Server) handleBook(c *gin.Context) {
	typeID, ok := queryID(c, "type")
	if !ok {
		return
	}
	regionID, ok := queryID(c, "region")
	if !ok {
		return
	}

	at, calendar, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if calendar {
		at = zoneCorrected(at)
	}

	bk, err := s.lookup.BookAt(c.Request.Context(), typeID, regionID, at)
	if err != nil {
		s.respondLookupError(c, err, "order book lookup failed")
		return
	}
	c.JSON(http.StatusOK, bk)
}

func (s *Server) handleHistory(c *gin.Context) {
	typeID, ok := queryID(c, "typeID")
	if !ok {
		return
	}
	regionID, ok := queryID(c, "regionID")
	if !ok {
		return
	}

	at, _, err := parseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	row, err := s.lookup.HistoryOn(c.Request.Context(), typeID, regionID, at)
	if err != nil {
		s.respondLookupError(c, err, "history lookup failed")
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleLiveBook(c *gin.Context) {
	typeIDs, err := parseIDList(c.QueryArray("typeID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	regionID, ok := queryID(c, "regionID")
	if !ok {
		return
	}

	books, err := s.lookup.LiveBooks(c.Request.Context(), typeIDs, regionID)
	if err != nil {
		s.respondLookupError(c, err, "live book lookup failed")
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) handleLiveStructure(c *gin.Context) {
	typeIDs, err := parseIDList(c.QueryArray("typeID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	structureID, ok := queryID(c, "structureID")
	if !ok {
		return
	}

	books, err := s.lookup.LiveStructureBooks(c.Request.Context(), typeIDs, structureID)
	if err != nil {
		s.respondLookupError(c, err, "live structure lookup failed")
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) respondLookupError(c *gin.Context, err error, logMessage string) {
	var nf *service.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"message": nf.Error()})
		return
	}
	s.log.WithComponent("api").WithError(err).Error(logMessage)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error during lookup"})
}

// queryID reads an integer id parameter. A missing parameter becomes -1 so
// the lookup reports a regular not-found; a malformed one is a client error
// and the handler has already responded when ok is false.
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return -1, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse " + name + ": " + raw})
		return 0, false
	}
	return id, true
}
